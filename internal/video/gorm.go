package video

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// sceneList is stored as a JSON text column.
type sceneList []Scene

func (s sceneList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *sceneList) Scan(value any) error {
	return scanJSON(value, s)
}

// indexSet is stored as a JSON text column.
type indexSet []int

func (s indexSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *indexSet) Scan(value any) error {
	return scanJSON(value, s)
}

func scanJSON(value, dst any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("video: unsupported column type %T", value)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

// videoRecord is the row layout: one addressable row per video.
type videoRecord struct {
	ID                string    `gorm:"primaryKey;size:64"`
	Title             string    `gorm:"size:255"`
	Status            string    `gorm:"size:32;index"`
	ScriptText        string    `gorm:"type:text"`
	Storyboard        sceneList `gorm:"type:text"`
	StoryboardVersion int
	DirtyScenes       indexSet `gorm:"type:text"`
	AudioURL          string   `gorm:"size:1024"`
	CaptionsURL       string   `gorm:"size:1024"`
	ImagesDone        int
	ImagesTotal       int
	AudioDone         bool
	CaptionsDone      bool
	TotalDuration     float64
	FinalVideoURL     string `gorm:"size:1024"`
	ErrorMessage      string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (videoRecord) TableName() string {
	return "videos"
}

func recordFromVideo(v *Video) videoRecord {
	return videoRecord{
		ID:                v.ID,
		Title:             v.Title,
		Status:            string(v.Status),
		ScriptText:        v.ScriptText,
		Storyboard:        sceneList(v.Storyboard),
		StoryboardVersion: v.StoryboardVersion,
		DirtyScenes:       indexSet(v.DirtyScenes),
		AudioURL:          v.AudioURL,
		CaptionsURL:       v.CaptionsURL,
		ImagesDone:        v.Progress.ImagesDone,
		ImagesTotal:       v.Progress.ImagesTotal,
		AudioDone:         v.Progress.AudioDone,
		CaptionsDone:      v.Progress.CaptionsDone,
		TotalDuration:     v.TotalDuration,
		FinalVideoURL:     v.FinalVideoURL,
		ErrorMessage:      v.ErrorMessage,
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         v.UpdatedAt,
	}
}

func (r *videoRecord) toVideo() *Video {
	v := &Video{
		ID:                r.ID,
		Title:             r.Title,
		Status:            Status(r.Status),
		ScriptText:        r.ScriptText,
		StoryboardVersion: r.StoryboardVersion,
		AudioURL:          r.AudioURL,
		CaptionsURL:       r.CaptionsURL,
		Progress: Progress{
			ImagesDone:   r.ImagesDone,
			ImagesTotal:  r.ImagesTotal,
			AudioDone:    r.AudioDone,
			CaptionsDone: r.CaptionsDone,
		},
		TotalDuration: r.TotalDuration,
		FinalVideoURL: r.FinalVideoURL,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	// Copies, so in-place edits by an UpdateFunc stay visible to changedColumns.
	if len(r.Storyboard) > 0 {
		v.Storyboard = slices.Clone([]Scene(r.Storyboard))
	}
	if len(r.DirtyScenes) > 0 {
		v.DirtyScenes = slices.Clone([]int(r.DirtyScenes))
	}
	return v
}

// changedColumns returns only the columns that differ between two rows so
// concurrent writers touching other fields are not overwritten.
func changedColumns(before, after videoRecord) map[string]any {
	cols := make(map[string]any)
	set := func(name string, changed bool, value any) {
		if changed {
			cols[name] = value
		}
	}
	set("title", before.Title != after.Title, after.Title)
	set("status", before.Status != after.Status, after.Status)
	set("script_text", before.ScriptText != after.ScriptText, after.ScriptText)
	set("storyboard", !jsonEqual(before.Storyboard, after.Storyboard), after.Storyboard)
	set("storyboard_version", before.StoryboardVersion != after.StoryboardVersion, after.StoryboardVersion)
	set("dirty_scenes", !jsonEqual(before.DirtyScenes, after.DirtyScenes), after.DirtyScenes)
	set("audio_url", before.AudioURL != after.AudioURL, after.AudioURL)
	set("captions_url", before.CaptionsURL != after.CaptionsURL, after.CaptionsURL)
	set("images_done", before.ImagesDone != after.ImagesDone, after.ImagesDone)
	set("images_total", before.ImagesTotal != after.ImagesTotal, after.ImagesTotal)
	set("audio_done", before.AudioDone != after.AudioDone, after.AudioDone)
	set("captions_done", before.CaptionsDone != after.CaptionsDone, after.CaptionsDone)
	set("total_duration", before.TotalDuration != after.TotalDuration, after.TotalDuration)
	set("final_video_url", before.FinalVideoURL != after.FinalVideoURL, after.FinalVideoURL)
	set("error_message", before.ErrorMessage != after.ErrorMessage, after.ErrorMessage)
	if len(cols) > 0 {
		cols["updated_at"] = after.UpdatedAt
	}
	return cols
}

func jsonEqual(a, b driver.Valuer) bool {
	av, errA := a.Value()
	bv, errB := b.Value()
	return errA == nil && errB == nil && av == bv
}

// GormRepository persists videos in a relational database through gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates the repository and migrates the videos table.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&videoRecord{}); err != nil {
		return nil, fmt.Errorf("video: migrate: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Create inserts a new row.
func (r *GormRepository) Create(ctx context.Context, v *Video) error {
	rec := recordFromVideo(v)
	var count int64
	if err := r.db.WithContext(ctx).Model(&videoRecord{}).Where("id = ?", v.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("video: check existing: %w", err)
	}
	if count > 0 {
		return ErrVideoExists
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrVideoExists
		}
		return fmt.Errorf("video: create: %w", err)
	}
	return nil
}

// Get loads a row by ID.
func (r *GormRepository) Get(ctx context.Context, id string) (*Video, error) {
	var rec videoRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("video: get %s: %w", id, err)
	}
	return rec.toVideo(), nil
}

// Update runs fn inside a transaction. The row is locked with SELECT ... FOR
// UPDATE where the dialect supports it and only changed columns are written.
func (r *GormRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*Video, error) {
	var out *Video
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rec videoRecord
		if err := q.First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVideoNotFound
			}
			return fmt.Errorf("video: load %s: %w", id, err)
		}

		v := rec.toVideo()
		if err := fn(v); err != nil {
			return err
		}
		v.ID = rec.ID
		v.touch()

		next := recordFromVideo(v)
		cols := changedColumns(rec, next)
		if len(cols) > 0 {
			if err := tx.Model(&videoRecord{}).Where("id = ?", id).Updates(cols).Error; err != nil {
				return fmt.Errorf("video: update %s: %w", id, err)
			}
		} else {
			v.UpdatedAt = rec.UpdatedAt
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every video ordered by creation time.
func (r *GormRepository) List(ctx context.Context) ([]*Video, error) {
	var recs []videoRecord
	if err := r.db.WithContext(ctx).Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("video: list: %w", err)
	}
	out := make([]*Video, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toVideo())
	}
	return out, nil
}

// Delete removes a row.
func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&videoRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("video: delete %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVideoNotFound
	}
	return nil
}
