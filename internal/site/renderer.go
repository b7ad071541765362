package site

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	applog "github.com/trading-academy/academy-web/internal/logger"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

const baseTemplate = "templates/_base.gohtml"

// Renderer は埋め込みテンプレートを起動時に一度だけ解析して保持します。
// "_" で始まるファイルは全ページで共有するレイアウトです。
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

var funcs = template.FuncMap{
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"inc": func(i int) int { return i + 1 },
	"json": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// NewRenderer は全ページのテンプレートを解析します。
func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	logger = applog.OrNop(logger)
	files, err := fs.Glob(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("テンプレートの列挙に失敗しました: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		fname := path.Base(file)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		name := strings.TrimSuffix(fname, ".gohtml")
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, baseTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("テンプレート %s の解析に失敗しました: %w", name, err)
		}
		pages[name] = tmpl.Option("missingkey=error")
	}
	return &Renderer{pages: pages, logger: logger.Named("renderer")}, nil
}

// Render はページを status で書き込みます。途中で失敗しても中途半端なHTMLは送りません。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data interface{}) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown page template", zap.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("template execution failed", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
