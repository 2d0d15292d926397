package repo

import (
	"context"
	"errors"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryInterface restricts Repo methods so services can be tested against wrappers.
// Methods taking tx run inside that transaction; a nil tx uses the root connection.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateRequest(ctx context.Context, tx *gorm.DB, req *model.ShoutoutRequest) error
	GetRequest(ctx context.Context, tx *gorm.DB, id string) (*model.ShoutoutRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]model.ShoutoutRequest, error)
	ListAll(ctx context.Context, status *model.Status) ([]model.ShoutoutRequest, error)
	CompareAndSwapStatus(ctx context.Context, tx *gorm.DB, id string, expectedVersion uint64, newStatus model.Status) (*model.ShoutoutRequest, error)
	CompleteRequest(ctx context.Context, tx *gorm.DB, id string, expectedVersion uint64, price decimal.Decimal) (*model.ShoutoutRequest, error)
	CreateVideo(ctx context.Context, tx *gorm.DB, v *model.ShoutoutVideo) error
	GetVideoByRequest(ctx context.Context, tx *gorm.DB, requestID string) (*model.ShoutoutVideo, error)
	CountByStatus(ctx context.Context, requesterID string) ([]StatusCount, error)
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

// StatusCount is one row of the grouped aggregate.
type StatusCount struct {
	Status  model.Status
	Count   int64
	Revenue decimal.Decimal
}

// Repository implements RepositoryInterface.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: logger}
}

// GormConfig is the configuration every connection to the store should use.
func GormConfig() *gorm.Config {
	return &gorm.Config{PrepareStmt: true, TranslateError: true}
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.ShoutoutRequest{}, &model.ShoutoutVideo{}, &model.Celebrity{}, &model.OutboxEvent{})
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db.WithContext(ctx)
	}
	return tx.WithContext(ctx)
}

// CreateRequest inserts a new record.
func (r *Repository) CreateRequest(ctx context.Context, tx *gorm.DB, req *model.ShoutoutRequest) error {
	if err := r.conn(ctx, tx).Create(req).Error; err != nil {
		if isUniqueViolation(err) {
			return errs.Conflict("request", req.ID)
		}
		return r.fail("create request", err, "request_id", req.ID)
	}
	return nil
}

// GetRequest loads one request by id.
func (r *Repository) GetRequest(ctx context.Context, tx *gorm.DB, id string) (*model.ShoutoutRequest, error) {
	var req model.ShoutoutRequest
	if err := r.conn(ctx, tx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("request", id)
		}
		return nil, r.fail("get request", err, "request_id", id)
	}
	return &req, nil
}

// ListByRequester returns the requester's requests, newest first.
func (r *Repository) ListByRequester(ctx context.Context, requesterID string) ([]model.ShoutoutRequest, error) {
	var reqs []model.ShoutoutRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").Order("id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, r.fail("list requests by requester", err, "requester_id", requesterID)
	}
	return reqs, nil
}

// ListAll returns every request, optionally restricted to one status, newest first.
func (r *Repository) ListAll(ctx context.Context, status *model.Status) ([]model.ShoutoutRequest, error) {
	q := r.db.WithContext(ctx).Model(&model.ShoutoutRequest{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var reqs []model.ShoutoutRequest
	if err := q.Order("created_at DESC").Order("id DESC").Find(&reqs).Error; err != nil {
		return nil, r.fail("list requests", err)
	}
	return reqs, nil
}

// CompareAndSwapStatus with optimistic lock.
func (r *Repository) CompareAndSwapStatus(ctx context.Context, tx *gorm.DB, id string, expectedVersion uint64, newStatus model.Status) (*model.ShoutoutRequest, error) {
	return r.swap(ctx, tx, id, expectedVersion, map[string]interface{}{"status": newStatus})
}

// CompleteRequest moves the request to completed and captures the price it was fulfilled at.
func (r *Repository) CompleteRequest(ctx context.Context, tx *gorm.DB, id string, expectedVersion uint64, price decimal.Decimal) (*model.ShoutoutRequest, error) {
	return r.swap(ctx, tx, id, expectedVersion, map[string]interface{}{
		"status":          model.StatusCompleted,
		"completed_price": decimal.NewNullDecimal(price),
	})
}

func (r *Repository) swap(ctx context.Context, tx *gorm.DB, id string, expectedVersion uint64, updates map[string]interface{}) (*model.ShoutoutRequest, error) {
	updates["version"] = expectedVersion + 1
	updates["updated_at"] = time.Now().UTC()

	db := r.conn(ctx, tx)
	res := db.Model(&model.ShoutoutRequest{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return nil, r.fail("compare and swap status", res.Error, "request_id", id)
	}
	if res.RowsAffected == 0 {
		// distinguish a missing row from a lost race
		if _, err := r.GetRequest(ctx, tx, id); err != nil {
			return nil, err
		}
		return nil, errs.Conflict("request", id)
	}
	return r.GetRequest(ctx, tx, id)
}

// CreateVideo inserts the single video of a request.
func (r *Repository) CreateVideo(ctx context.Context, tx *gorm.DB, v *model.ShoutoutVideo) error {
	if err := r.conn(ctx, tx).Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return errs.Conflict("video for request", v.RequestID)
		}
		return r.fail("create video", err, "request_id", v.RequestID)
	}
	return nil
}

// GetVideoByRequest loads the video attached to a request.
func (r *Repository) GetVideoByRequest(ctx context.Context, tx *gorm.DB, requestID string) (*model.ShoutoutVideo, error) {
	var v model.ShoutoutVideo
	if err := r.conn(ctx, tx).Where("request_id = ?", requestID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("video for request", requestID)
		}
		return nil, r.fail("get video", err, "request_id", requestID)
	}
	return &v, nil
}

// CountByStatus aggregates counts and captured revenue per status in one statement,
// so every row reflects the same snapshot. An empty requesterID covers all requests.
func (r *Repository) CountByStatus(ctx context.Context, requesterID string) ([]StatusCount, error) {
	q := r.db.WithContext(ctx).Model(&model.ShoutoutRequest{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(completed_price), 0) AS revenue")
	if requesterID != "" {
		q = q.Where("requester_id = ?", requesterID)
	}
	var rows []StatusCount
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, r.fail("count requests by status", err, "requester_id", requesterID)
	}
	return rows, nil
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return r.fail("create outbox event", r.conn(ctx, tx).Create(evt).Error)
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = ?", false).Order("id").Limit(limit).Find(&evts).Error
	return evts, r.fail("poll outbox", err)
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
	return r.fail("mark outbox processed", err, "outbox_id", id)
}

func (r *Repository) fail(op string, err error, kv ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := errs.Storage(op, err)
	if r.log != nil {
		r.log.Errorw("repository operation failed", append([]interface{}{"op", op, "error", err}, kv...)...)
	}
	return wrapped
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
