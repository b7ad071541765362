package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/trading-academy/academy-web/internal/models"
)

const (
	coursesTable = "courses"
	modulesTable = "course_modules"
	lessonsTable = "lessons"
)

// ThumbnailResolver はストレージ上のパスを公開URLに変換します。
type ThumbnailResolver interface {
	PublicURL(path string) string
}

// CourseRepository はコース・モジュール・レッスンの読み取り操作を定義するインターフェースです。
type CourseRepository interface {
	ListPublishedCourses(ctx context.Context) ([]models.Course, error)
	GetCourse(ctx context.Context, courseID string) (*models.Course, error)
	GetLesson(ctx context.Context, lessonID string) (*models.LessonDetail, error)
}

// courseRepositoryImpl はCourseRepositoryインターフェースの実装です。
type courseRepositoryImpl struct {
	rest       RestClient
	thumbnails ThumbnailResolver
}

// NewCourseRepository はCourseRepositoryの新しいインスタンスを作成します。thumbnails は nil でも構いません。
func NewCourseRepository(rest RestClient, thumbnails ThumbnailResolver) CourseRepository {
	return &courseRepositoryImpl{rest: rest, thumbnails: thumbnails}
}

func (r *courseRepositoryImpl) withThumbnail(c *models.Course) {
	if r.thumbnails != nil && c.ThumbnailPath != "" && c.ThumbnailURL == "" {
		c.ThumbnailURL = r.thumbnails.PublicURL(c.ThumbnailPath)
	}
}

// ListPublishedCourses は公開済みのコースを sort_order 順に取得します。
func (r *courseRepositoryImpl) ListPublishedCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := query(ctx, func(dest *[]models.Course) error {
		_, err := r.rest.From(coursesTable).
			Select("*", "", false).
			Eq("is_published", "true").
			Order("sort_order", asc()).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].SortOrder < courses[j].SortOrder })
	for i := range courses {
		r.withThumbnail(&courses[i])
	}
	return courses, nil
}

// getCourseRow はモジュールを含まない公開済みコースの行を取得します。
func (r *courseRepositoryImpl) getCourseRow(ctx context.Context, courseID string) (*models.Course, error) {
	courses, err := query(ctx, func(dest *[]models.Course) error {
		_, err := r.rest.From(coursesTable).
			Select("*", "", false).
			Eq("id", courseID).
			Eq("is_published", "true").
			Limit(1, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("コース '%s' の取得に失敗しました: %w", courseID, err)
	}
	if len(courses) == 0 {
		return nil, ErrNotFound
	}
	course := courses[0]
	r.withThumbnail(&course)
	return &course, nil
}

// GetCourse は公開済みのコースを、公開済みモジュールとレッスン付きで取得します。
func (r *courseRepositoryImpl) GetCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := r.getCourseRow(ctx, courseID)
	if err != nil {
		return nil, err
	}

	modules, err := query(ctx, func(dest *[]models.Module) error {
		_, err := r.rest.From(modulesTable).
			Select("*", "", false).
			Eq("course_id", courseID).
			Eq("is_published", "true").
			Order("sort_order", asc()).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("コース '%s' のモジュール取得に失敗しました: %w", courseID, err)
	}
	if len(modules) == 0 {
		course.Modules = []models.Module{}
		return course, nil
	}

	moduleIDs := make([]string, len(modules))
	for i, m := range modules {
		moduleIDs[i] = m.ID
	}
	lessons, err := query(ctx, func(dest *[]models.Lesson) error {
		_, err := r.rest.From(lessonsTable).
			Select("*", "", false).
			In("module_id", moduleIDs).
			Eq("is_published", "true").
			Order("sort_order", asc()).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("コース '%s' のレッスン取得に失敗しました: %w", courseID, err)
	}

	course.Modules = assembleModules(modules, lessons)
	return course, nil
}

// assembleModules はレッスンをモジュールに振り分け、どちらも sort_order 順に並べます。
func assembleModules(modules []models.Module, lessons []models.Lesson) []models.Module {
	byModule := make(map[string][]models.Lesson, len(modules))
	for _, l := range lessons {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}

	out := make([]models.Module, len(modules))
	copy(out, modules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	for i := range out {
		ls := byModule[out[i].ID]
		sort.SliceStable(ls, func(a, b int) bool { return ls[a].SortOrder < ls[b].SortOrder })
		if ls == nil {
			ls = []models.Lesson{}
		}
		out[i].Lessons = ls
	}
	return out
}

// GetLesson は公開済みのレッスンと、その所属コースを取得します。
func (r *courseRepositoryImpl) GetLesson(ctx context.Context, lessonID string) (*models.LessonDetail, error) {
	lessons, err := query(ctx, func(dest *[]models.Lesson) error {
		_, err := r.rest.From(lessonsTable).
			Select("*", "", false).
			Eq("id", lessonID).
			Eq("is_published", "true").
			Limit(1, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("レッスン '%s' の取得に失敗しました: %w", lessonID, err)
	}
	if len(lessons) == 0 {
		return nil, ErrNotFound
	}
	lesson := lessons[0]

	modules, err := query(ctx, func(dest *[]models.Module) error {
		_, err := r.rest.From(modulesTable).
			Select("*", "", false).
			Eq("id", lesson.ModuleID).
			Limit(1, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("レッスン '%s' のモジュール取得に失敗しました: %w", lessonID, err)
	}
	if len(modules) == 0 {
		return nil, ErrNotFound
	}

	course, err := r.getCourseRow(ctx, modules[0].CourseID)
	if err != nil {
		return nil, err
	}

	tier := lesson.TierRequired
	if !tier.Valid() {
		tier = course.TierRequired
	}
	return &models.LessonDetail{
		Lesson:        lesson,
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		EffectiveTier: tier,
	}, nil
}
