package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"honestlens/types"
)

// RequestRecord is the verification_requests row.
type RequestRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"size:16;not null"`
	Payload   string `gorm:"type:text;not null"`
	Content   string `gorm:"type:mediumtext"`
	Priority  string `gorm:"size:16;not null"`
	DedupKey  string `gorm:"size:512;index:idx_dedup_state,priority:1"`
	State     string `gorm:"size:16;not null;index:idx_dedup_state,priority:2"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RequestRecord) TableName() string { return "verification_requests" }

// ResultRecord is the verification_results row. Lists are stored as JSON.
type ResultRecord struct {
	RequestID        string            `gorm:"primaryKey;size:36"`
	TruthScore       int               `gorm:"not null"`
	CredibilityLevel string            `gorm:"size:32;not null"`
	ConfidenceScore  int               `gorm:"not null"`
	Evidence         []string          `gorm:"type:json;serializer:json"`
	Flags            []string          `gorm:"type:json;serializer:json"`
	SourcesChecked   []types.SourceRef `gorm:"type:json;serializer:json"`
	Method           string            `gorm:"size:16;not null"`
	Reasoning        string            `gorm:"type:text"`
	VerifiedAt       time.Time
}

func (ResultRecord) TableName() string { return "verification_results" }

func toRequestRecord(r *types.VerificationRequest) RequestRecord {
	return RequestRecord{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Payload:   r.Payload,
		Content:   r.Content,
		Priority:  string(r.Priority),
		DedupKey:  r.DedupKey,
		State:     string(r.State),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (rec RequestRecord) toRequest() *types.VerificationRequest {
	return &types.VerificationRequest{
		ID:        rec.ID,
		Kind:      types.Kind(rec.Kind),
		Payload:   rec.Payload,
		Content:   rec.Content,
		Priority:  types.Priority(rec.Priority),
		DedupKey:  rec.DedupKey,
		State:     types.State(rec.State),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func toResultRecord(r *types.VerificationResult) ResultRecord {
	return ResultRecord{
		RequestID:        r.RequestID,
		TruthScore:       r.TruthScore,
		CredibilityLevel: string(r.CredibilityLevel),
		ConfidenceScore:  r.ConfidenceScore,
		Evidence:         r.Evidence,
		Flags:            r.Flags,
		SourcesChecked:   r.SourcesChecked,
		Method:           string(r.Method),
		Reasoning:        r.Reasoning,
		VerifiedAt:       r.VerifiedAt,
	}
}

func (rec ResultRecord) toResult() *types.VerificationResult {
	return &types.VerificationResult{
		RequestID:        rec.RequestID,
		TruthScore:       rec.TruthScore,
		CredibilityLevel: types.CredibilityLevel(rec.CredibilityLevel),
		ConfidenceScore:  rec.ConfidenceScore,
		Evidence:         rec.Evidence,
		Flags:            rec.Flags,
		SourcesChecked:   rec.SourcesChecked,
		Method:           types.Method(rec.Method),
		Reasoning:        rec.Reasoning,
		VerifiedAt:       rec.VerifiedAt,
	}
}

// ConnectMySQL opens a gorm connection and migrates the two tables.
func ConnectMySQL(dsn string, log *zap.Logger) (*gorm.DB, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}

	gormLogger := logger.New(
		zap.NewStdLog(log),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	if err := db.AutoMigrate(&RequestRecord{}, &ResultRecord{}); err != nil {
		return nil, fmt.Errorf("mysql migrate: %w", err)
	}
	return db, nil
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}

// GormStore is a Store backed by MySQL through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SaveRequest(ctx context.Context, req *types.VerificationRequest) error {
	rec := toRequestRecord(req)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save request %s: %w", req.ID, err)
	}
	return nil
}

// predecessors lists the states a request may leave to reach each state.
func predecessors(to types.State) []string {
	var from []string
	for _, s := range []types.State{types.StatePending, types.StateProcessing, types.StateCompleted, types.StateFailed} {
		if types.CanTransition(s, to) {
			from = append(from, string(s))
		}
	}
	return from
}

func (s *GormStore) UpdateRequestState(ctx context.Context, id string, state types.State, at time.Time) error {
	return updateState(s.db.WithContext(ctx), id, state, at)
}

// updateState applies a guarded transition on db, which may be a transaction.
func updateState(db *gorm.DB, id string, state types.State, at time.Time) error {
	from := predecessors(state)
	if len(from) == 0 {
		return fmt.Errorf("-> %s: %w", state, types.ErrInvalidTransition)
	}
	res := db.Model(&RequestRecord{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(map[string]any{"state": string(state), "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("update request %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var n int64
	if err := db.Model(&RequestRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("get request %s: %w", id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return fmt.Errorf("request %s -> %s: %w", id, state, types.ErrInvalidTransition)
}

func (s *GormStore) SaveResult(ctx context.Context, res *types.VerificationResult) error {
	return saveResult(s.db.WithContext(ctx), res)
}

func saveResult(db *gorm.DB, res *types.VerificationResult) error {
	rec := toResultRecord(res)
	if err := db.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrResultExists
		}
		return fmt.Errorf("save result %s: %w", res.RequestID, err)
	}
	return nil
}

func (s *GormStore) Complete(ctx context.Context, res *types.VerificationResult, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveResult(tx, res); err != nil {
			return err
		}
		return updateState(tx, res.RequestID, types.StateCompleted, at)
	})
}

func (s *GormStore) FindCompletedByDedupKey(ctx context.Context, key string) (*types.VerificationRequest, error) {
	if key == "" {
		return nil, types.ErrNotFound
	}
	var rec RequestRecord
	err := s.db.WithContext(ctx).
		Where("dedup_key = ? AND state = ?", key, string(types.StateCompleted)).
		Order("updated_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by dedup key: %w", err)
	}
	return rec.toRequest(), nil
}

func (s *GormStore) GetRequest(ctx context.Context, id string) (*types.VerificationRequest, error) {
	var rec RequestRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return rec.toRequest(), nil
}

func (s *GormStore) GetResult(ctx context.Context, requestID string) (*types.VerificationResult, error) {
	var rec ResultRecord
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", requestID, err)
	}
	return rec.toResult(), nil
}
