package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/auth"
	"github.com/Africahassucceed/celebsbridgenew/internal/blob"
	"github.com/Africahassucceed/celebsbridgenew/internal/catalog"
	"github.com/Africahassucceed/celebsbridgenew/internal/config"
	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/metrics"
	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/Africahassucceed/celebsbridgenew/internal/notify"
	"github.com/Africahassucceed/celebsbridgenew/internal/repo"
	"github.com/Africahassucceed/celebsbridgenew/internal/testutil/dbtest"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	fixedNow  = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	admin     = auth.Principal{ID: "admin-1", Role: auth.RoleAdmin}
	requester = auth.Principal{ID: "user-1", Role: auth.RoleUser}
	stranger  = auth.Principal{ID: "user-2", Role: auth.RoleUser}
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(_ context.Context, evt notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc    *ShoutoutService
	db     *gorm.DB
	repo   *repo.Repository
	events *recorder
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.SeedCelebrity(t, db, "celeb-1", 500, true)
	dbtest.SeedCelebrity(t, db, "celeb-2", 250, true)
	dbtest.SeedCelebrity(t, db, "retired", 100, false)

	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, log)
	store, err := blob.NewStore(t.TempDir(), "http://files.test", "blob-secret")
	require.NoError(t, err)

	opts := Options{
		OpTimeout:   5 * time.Second,
		MaxAttempts: 3,
		HandleTTL:   10 * time.Minute,
		RevenueMode: config.RevenuePerRequest,
		Now:         func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	events := &recorder{}
	svc := NewShoutoutService(r, catalog.NewService(db, nil, time.Minute, log), store, events, opts, log)
	return &fixture{svc: svc, db: db, repo: r, events: events}
}

func (f *fixture) create(t *testing.T, celebrityID string) string {
	t.Helper()
	id, err := f.svc.CreateRequest(context.Background(), requester, model.Draft{
		CelebrityID:  celebrityID,
		Message:      "Please wish Ada a happy birthday",
		Occasion:     "Birthday",
		DeliveryDate: fixedNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	return id
}

// seedAt stores a request directly in the given state.
func (f *fixture) seedAt(t *testing.T, id string, status model.Status) {
	t.Helper()
	require.NoError(t, f.repo.CreateRequest(context.Background(), nil, &model.ShoutoutRequest{
		ID:           id,
		RequesterID:  requester.ID,
		CelebrityID:  "celeb-1",
		Message:      "hello",
		Occasion:     "Graduation",
		DeliveryDate: fixedNow.AddDate(0, 0, 3),
		Status:       status,
		QuotedPrice:  decimal.NewFromInt(500),
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}))
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, "celeb-1")
	req, err := f.svc.GetRequest(ctx, id, requester)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, uint64(0), req.Version)
	assert.Equal(t, requester.ID, req.RequesterID)
	assert.True(t, decimal.NewFromInt(500).Equal(req.QuotedPrice))
	assert.False(t, req.CompletedPrice.Valid)
	assert.Equal(t, []string{notify.RequestCreated}, f.events.types())
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blank := "  "
	foreign := "user-2/1772359200000_brief.pdf"
	climbing := "user-1/../user-2/1772359200000_brief.pdf"
	own := "user-1/1772359200000_brief.pdf"
	valid := model.Draft{
		CelebrityID:  "celeb-1",
		Message:      "hi",
		Occasion:     "Wedding",
		DeliveryDate: fixedNow,
	}

	cases := []struct {
		name   string
		edit   func(d *model.Draft)
		field  string
		target error
	}{
		{"missing message", func(d *model.Draft) { d.Message = "   " }, "message", errs.ErrValidation},
		{"missing occasion", func(d *model.Draft) { d.Occasion = "" }, "occasion", errs.ErrValidation},
		{"missing celebrity", func(d *model.Draft) { d.CelebrityID = "" }, "celebrity_id", errs.ErrValidation},
		{"missing date", func(d *model.Draft) { d.DeliveryDate = time.Time{} }, "delivery_date", errs.ErrValidation},
		{"date in the past", func(d *model.Draft) { d.DeliveryDate = fixedNow.AddDate(0, 0, -1) }, "delivery_date", errs.ErrValidation},
		{"blank reference", func(d *model.Draft) { d.ReferenceFile = &blank }, "reference_file", errs.ErrValidation},
		{"someone else's reference", func(d *model.Draft) { d.ReferenceFile = &foreign }, "reference_file", errs.ErrValidation},
		{"reference escaping own prefix", func(d *model.Draft) { d.ReferenceFile = &climbing }, "reference_file", errs.ErrValidation},
		{"unknown celebrity", func(d *model.Draft) { d.CelebrityID = "nobody" }, "celebrity_id", errs.ErrValidation},
		{"inactive celebrity", func(d *model.Draft) { d.CelebrityID = "retired" }, "celebrity_id", errs.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := valid
			tc.edit(&d)
			_, err := f.svc.CreateRequest(ctx, requester, d)
			require.ErrorIs(t, err, tc.target)
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	// same-day delivery is allowed
	_, err := f.svc.CreateRequest(ctx, requester, valid)
	assert.NoError(t, err)

	withRef := valid
	withRef.ReferenceFile = &own
	id, err := f.svc.CreateRequest(ctx, requester, withRef)
	require.NoError(t, err)
	stored, err := f.repo.GetRequest(ctx, nil, id)
	require.NoError(t, err)
	require.NotNil(t, stored.ReferenceFile)
	assert.Equal(t, own, *stored.ReferenceFile)

	_, err = f.svc.CreateRequest(ctx, auth.Principal{}, valid)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestTransitionGraphIsClosed(t *testing.T) {
	ctx := context.Background()
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			from, to := from, to
			t.Run(from.String()+"_to_"+to.String(), func(t *testing.T) {
				f := newFixture(t)
				f.seedAt(t, "req", from)

				updated, err := f.svc.Transition(ctx, "req", to, admin)
				if CanTransition(from, to) && to != model.StatusCompleted {
					require.NoError(t, err)
					assert.Equal(t, to, updated.Status)
					assert.Equal(t, uint64(1), updated.Version)
					return
				}
				require.ErrorIs(t, err, errs.ErrInvalidTransition)
				stored, err := f.repo.GetRequest(ctx, nil, "req")
				require.NoError(t, err)
				assert.Equal(t, from, stored.Status)
				assert.Equal(t, uint64(0), stored.Version)
			})
		}
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, from := range model.Statuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range model.Statuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(model.StatusPending, model.StatusCompleted))
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, "celeb-1")
	_, err := f.svc.Transition(ctx, id, model.StatusApproved, requester)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.Transition(ctx, id, model.StatusCancelled, stranger)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	// illegal edges are reported as such whoever asks
	_, err = f.svc.Transition(ctx, id, model.StatusPending, stranger)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, id, model.Status("archived"), admin)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.Transition(ctx, "missing", model.StatusApproved, admin)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	cancelled, err := f.svc.Transition(ctx, id, model.StatusCancelled, requester)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	// an approved request can only be cancelled by an admin
	other := f.create(t, "celeb-2")
	_, err = f.svc.Transition(ctx, other, model.StatusApproved, admin)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, other, model.StatusCancelled, requester)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = f.svc.Transition(ctx, other, model.StatusCancelled, admin)
	assert.NoError(t, err)

	assert.Equal(t, []string{
		notify.RequestCreated, notify.RequestCancelled,
		notify.RequestCreated, notify.RequestApproved, notify.RequestCancelled,
	}, f.events.types())
}

// barrierRepo holds every caller of GetRequest until parties callers have read,
// so all of them act on the same version.
type barrierRepo struct {
	*repo.Repository
	mu      sync.Mutex
	arrived int
	parties int
	release chan struct{}
}

func (b *barrierRepo) GetRequest(ctx context.Context, tx *gorm.DB, id string) (*model.ShoutoutRequest, error) {
	req, err := b.Repository.GetRequest(ctx, tx, id)
	b.mu.Lock()
	if b.arrived >= b.parties {
		b.mu.Unlock()
		return req, err
	}
	b.arrived++
	if b.arrived == b.parties {
		close(b.release)
	}
	b.mu.Unlock()
	<-b.release
	return req, err
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "celeb-1")

	racing := NewShoutoutService(
		&barrierRepo{Repository: f.repo, parties: 2, release: make(chan struct{})},
		f.svc.catalog, f.svc.blobs, f.events, f.svc.opts, zap.NewNop().Sugar(),
	)

	type result struct {
		target model.Status
		err    error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, move := range []struct {
		target model.Status
		actor  auth.Principal
	}{
		{model.StatusApproved, admin},
		{model.StatusCancelled, requester},
	} {
		wg.Add(1)
		go func(target model.Status, actor auth.Principal) {
			defer wg.Done()
			_, err := racing.Transition(ctx, id, target, actor)
			results <- result{target, err}
		}(move.target, move.actor)
	}
	wg.Wait()
	close(results)

	var winner model.Status
	var conflicts int
	for r := range results {
		if r.err == nil {
			winner = r.target
			continue
		}
		require.ErrorIs(t, r.err, errs.ErrConflict)
		conflicts++
	}
	assert.Equal(t, 1, conflicts)

	final, err := f.repo.GetRequest(ctx, nil, id)
	require.NoError(t, err)
	assert.Equal(t, winner, final.Status)
	assert.Equal(t, uint64(1), final.Version)
}

func TestTransitionWithRetryRereads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "celeb-1")

	racing := NewShoutoutService(
		&barrierRepo{Repository: f.repo, parties: 2, release: make(chan struct{})},
		f.svc.catalog, f.svc.blobs, f.events, f.svc.opts, zap.NewNop().Sugar(),
	)

	// both admins approve; the loser re-reads, finds Approved and reports the illegal edge
	errsOut := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := racing.TransitionWithRetry(ctx, id, model.StatusApproved, admin)
			errsOut <- err
		}()
	}
	wg.Wait()
	close(errsOut)

	var ok, invalid int
	for err := range errsOut {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, errs.ErrInvalidTransition):
			invalid++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalid)
}

func TestAttachAndCompleteIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("pending request gets no video", func(t *testing.T) {
		f.seedAt(t, "pending", model.StatusPending)
		_, err := f.svc.AttachAndComplete(ctx, "pending", "videos/a.mp4", admin)
		require.ErrorIs(t, err, errs.ErrInvalidTransition)

		_, err = f.repo.GetVideoByRequest(ctx, nil, "pending")
		assert.ErrorIs(t, err, errs.ErrNotFound)
		stored, err := f.repo.GetRequest(ctx, nil, "pending")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, stored.Status)
	})

	t.Run("failed video insert rolls back status", func(t *testing.T) {
		f.seedAt(t, "approved", model.StatusApproved)
		// a stray row occupying the unique slot makes the insert fail inside the transaction
		require.NoError(t, f.db.Create(&model.ShoutoutVideo{ID: "stray", RequestID: "approved", VideoRef: "x", CreatedAt: fixedNow}).Error)

		_, err := f.svc.AttachAndComplete(ctx, "approved", "videos/b.mp4", admin)
		require.Error(t, err)

		stored, err := f.repo.GetRequest(ctx, nil, "approved")
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, stored.Status)
		assert.Equal(t, uint64(0), stored.Version)
		assert.False(t, stored.CompletedPrice.Valid)
	})

	t.Run("only admins deliver", func(t *testing.T) {
		f.seedAt(t, "approved-2", model.StatusApproved)
		_, err := f.svc.AttachAndComplete(ctx, "approved-2", "videos/c.mp4", requester)
		assert.ErrorIs(t, err, errs.ErrForbidden)
		_, err = f.svc.AttachAndComplete(ctx, "approved-2", " ", admin)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("second attach is rejected", func(t *testing.T) {
		f.seedAt(t, "approved-3", model.StatusApproved)
		video, err := f.svc.AttachAndComplete(ctx, "approved-3", "videos/d.mp4", admin)
		require.NoError(t, err)
		assert.Equal(t, "videos/d.mp4", video.VideoRef)

		_, err = f.svc.AttachAndComplete(ctx, "approved-3", "videos/e.mp4", admin)
		assert.ErrorIs(t, err, errs.ErrInvalidTransition)

		stored, err := f.repo.GetVideoByRequest(ctx, nil, "approved-3")
		require.NoError(t, err)
		assert.Equal(t, video.ID, stored.ID)
	})
}

// cancellingRepo lets a cancellation commit right after the first read,
// so the caller acts on a version that is already gone.
type cancellingRepo struct {
	*repo.Repository
	once sync.Once
}

func (c *cancellingRepo) GetRequest(ctx context.Context, tx *gorm.DB, id string) (*model.ShoutoutRequest, error) {
	req, err := c.Repository.GetRequest(ctx, tx, id)
	if err != nil || tx != nil {
		return req, err
	}
	var cerr error
	c.once.Do(func() {
		_, cerr = c.Repository.CompareAndSwapStatus(ctx, nil, id, req.Version, model.StatusCancelled)
	})
	return req, cerr
}

func TestAttachAndCompleteLosesToCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAt(t, "approved", model.StatusApproved)

	m := metrics.New()
	opts := f.svc.opts
	opts.Metrics = m
	racing := NewShoutoutService(&cancellingRepo{Repository: f.repo}, f.svc.catalog, f.svc.blobs, f.events, opts, zap.NewNop().Sugar())

	_, err := racing.AttachAndComplete(ctx, "approved", "videos/late.mp4", admin)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	var te *errs.InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, model.StatusCancelled.String(), te.From)

	_, err = f.repo.GetVideoByRequest(ctx, nil, "approved")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	stored, err := f.repo.GetRequest(ctx, nil, "approved")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.False(t, stored.CompletedPrice.Valid)

	assert.Equal(t, float64(1), promtest.ToFloat64(m.Conflicts.WithLabelValues("attach_and_complete")))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.Transitions.WithLabelValues(model.StatusCompleted.String(), "rejected")))
}

func TestExpiredDeadlineIsTimeout(t *testing.T) {
	f := newFixture(t)
	f.seedAt(t, "pending", model.StatusPending)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := f.svc.GlobalStats(ctx)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.True(t, errs.Retryable(err))

	_, err = f.svc.Transition(ctx, "pending", model.StatusApproved, admin)
	assert.ErrorIs(t, err, errs.ErrTimeout)

	stored, err := f.repo.GetRequest(context.Background(), nil, "pending")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestCompletionCapturesCurrentPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, "celeb-1")
	_, err := f.svc.Transition(ctx, id, model.StatusApproved, admin)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Celebrity{}).Where("id = ?", "celeb-1").Update("price", decimal.NewFromInt(650)).Error)

	_, err = f.svc.AttachAndComplete(ctx, id, "videos/a.mp4", admin)
	require.NoError(t, err)

	req, err := f.svc.GetRequest(ctx, id, requester)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(req.QuotedPrice))
	assert.True(t, decimal.NewFromInt(650).Equal(req.CompletedPrice.Decimal))
	require.NotNil(t, req.Video)
	assert.Equal(t, "videos/a.mp4", req.Video.VideoRef)
}

func TestScenarioFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, "celeb-1")
	_, err := f.svc.AttachAndComplete(ctx, id, "videos/early.mp4", admin)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	approved, err := f.svc.Transition(ctx, id, model.StatusApproved, admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)

	_, err = f.svc.AttachAndComplete(ctx, id, "videos/final.mp4", admin)
	require.NoError(t, err)

	stats, err := f.svc.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CompletedCount)
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.True(t, decimal.NewFromInt(500).Equal(stats.TotalRevenue), stats.TotalRevenue.String())
	assert.Equal(t, fixedNow, stats.AsOf)

	assert.Equal(t, []string{notify.RequestCreated, notify.RequestApproved, notify.RequestCompleted}, f.events.types())
}

func TestScenarioRequesterSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.create(t, "celeb-2")
	completed := f.create(t, "celeb-1")
	_, err := f.svc.Transition(ctx, cancelled, model.StatusCancelled, requester)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, completed, model.StatusApproved, admin)
	require.NoError(t, err)
	_, err = f.svc.AttachAndComplete(ctx, completed, "videos/a.mp4", admin)
	require.NoError(t, err)

	// another requester's spend stays out of the figure
	_, err = f.svc.CreateRequest(ctx, stranger, model.Draft{
		CelebrityID: "celeb-1", Message: "hey", Occasion: "Anniversary", DeliveryDate: fixedNow,
	})
	require.NoError(t, err)

	stats, err := f.svc.RequesterStats(ctx, requester.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.CompletedCount)
	assert.Equal(t, int64(0), stats.PendingCount)
	assert.True(t, decimal.NewFromInt(500).Equal(stats.TotalSpent), stats.TotalSpent.String())

	_, err = f.svc.RequesterStats(ctx, "")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestScenarioDownloadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, "celeb-1")
	_, err := f.svc.ResolveDownload(ctx, id, requester)
	assert.ErrorIs(t, err, errs.ErrNotFound, "no video before completion")

	_, err = f.svc.Transition(ctx, id, model.StatusApproved, admin)
	require.NoError(t, err)
	_, err = f.svc.AttachAndComplete(ctx, id, "admin-1/1772359200000_final.mp4", admin)
	require.NoError(t, err)

	_, err = f.svc.ResolveDownload(ctx, id, stranger)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	handle, err := f.svc.ResolveDownload(ctx, id, requester)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle.URL, "http://files.test/v1/blobs/download?token="), handle.URL)
	assert.Equal(t, id, handle.RequestID)
	assert.True(t, handle.ExpiresAt.After(time.Now()))

	_, err = f.svc.ResolveDownload(ctx, id, admin)
	assert.NoError(t, err)
}

func TestStatsPartitionStaysClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := make([]string, 6)
	for i := range ids {
		ids[i] = f.create(t, "celeb-1")
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = f.svc.TransitionWithRetry(ctx, id, model.StatusCancelled, requester)
				return
			}
			if _, err := f.svc.TransitionWithRetry(ctx, id, model.StatusApproved, admin); err == nil {
				_, _ = f.svc.AttachAndComplete(ctx, id, "videos/"+id+".mp4", admin)
			}
		}(i, id)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		stats, err := f.svc.GlobalStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, stats.TotalRequests,
			stats.PendingCount+stats.ApprovedCount+stats.CompletedCount+stats.CancelledCount)
		select {
		case <-done:
			final, err := f.svc.GlobalStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(6), final.TotalRequests)
			assert.Equal(t, int64(3), final.CancelledCount)
			assert.Equal(t, int64(3), final.CompletedCount)
			assert.True(t, decimal.NewFromInt(1500).Equal(final.TotalRevenue))
			return
		default:
		}
	}
}

func TestLegacyFlatRevenue(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.RevenueMode = config.RevenueLegacyFlat
		o.LegacyFlatPrice = decimal.NewFromInt(300)
	})
	ctx := context.Background()

	f.seedAt(t, "a", model.StatusApproved)
	f.seedAt(t, "b", model.StatusApproved)
	for _, id := range []string{"a", "b"} {
		_, err := f.svc.AttachAndComplete(ctx, id, "videos/"+id+".mp4", admin)
		require.NoError(t, err)
	}

	stats, err := f.svc.GlobalStats(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(600).Equal(stats.TotalRevenue), stats.TotalRevenue.String())
}

func TestListRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.create(t, "celeb-1")
	_, err := f.svc.CreateRequest(ctx, stranger, model.Draft{
		CelebrityID: "celeb-2", Message: "yo", Occasion: "Farewell", DeliveryDate: fixedNow,
	})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, mine, model.StatusApproved, admin)
	require.NoError(t, err)

	own, err := f.svc.ListRequests(ctx, requester, ListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine, own[0].ID)

	pending := model.StatusPending
	own, err = f.svc.ListRequests(ctx, requester, ListFilter{Status: &pending})
	require.NoError(t, err)
	assert.Empty(t, own)

	all, err := f.svc.ListRequests(ctx, admin, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyPending, err := f.svc.ListRequests(ctx, admin, ListFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, stranger.ID, onlyPending[0].RequesterID)

	_, err = f.svc.GetRequest(ctx, mine, stranger)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}
