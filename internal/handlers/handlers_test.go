package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
	"github.com/superorange0707/environment-booking/internal/model"
	"github.com/superorange0707/environment-booking/internal/storage"
)

// fakeStore implements storage.Store with overridable function fields.
// Unset fields return empty results.
type fakeStore struct {
	createBooking      func(ctx context.Context, b *model.Booking) (*model.Booking, error)
	cancelBooking      func(ctx context.Context, id, actorID int64) (*model.Booking, error)
	getBooking         func(ctx context.Context, id int64) (*model.Booking, error)
	listBookings       func(ctx context.Context) ([]model.BookingView, error)
	listActive         func(ctx context.Context) ([]model.Booking, error)
	listActiveByEnv    func(ctx context.Context, environmentID int64) ([]model.Booking, error)
	getEnvironment     func(ctx context.Context, id int64) (*model.Environment, error)
	listEnvironments   func(ctx context.Context) ([]model.Environment, error)
	updateEnvironment  func(ctx context.Context, id int64, name, envType string, actorID int64) (*model.Environment, error)
	setManualStatus    func(ctx context.Context, id int64, status model.ManualStatus, actorID int64) (*model.Environment, error)
	ensureUser         func(ctx context.Context, username string) (*model.User, error)
	getUser            func(ctx context.Context, id int64) (*model.User, error)
	listUsers          func(ctx context.Context) ([]model.User, error)
	listAuditEntries   func(ctx context.Context, environmentID int64, limit int) ([]model.AuditEntry, error)
}

func (f *fakeStore) CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	if f.createBooking == nil {
		created := *b
		created.ID = 1
		return &created, nil
	}
	return f.createBooking(ctx, b)
}

func (f *fakeStore) CancelBooking(ctx context.Context, id, actorID int64) (*model.Booking, error) {
	if f.cancelBooking == nil {
		return nil, storage.ErrNotFound
	}
	return f.cancelBooking(ctx, id, actorID)
}

func (f *fakeStore) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	if f.getBooking == nil {
		return nil, storage.ErrNotFound
	}
	return f.getBooking(ctx, id)
}

func (f *fakeStore) ListBookings(ctx context.Context) ([]model.BookingView, error) {
	if f.listBookings == nil {
		return nil, nil
	}
	return f.listBookings(ctx)
}

func (f *fakeStore) ListActiveBookings(ctx context.Context) ([]model.Booking, error) {
	if f.listActive == nil {
		return nil, nil
	}
	return f.listActive(ctx)
}

func (f *fakeStore) ListActiveByEnvironment(ctx context.Context, environmentID int64) ([]model.Booking, error) {
	if f.listActiveByEnv == nil {
		return nil, nil
	}
	return f.listActiveByEnv(ctx, environmentID)
}

func (f *fakeStore) GetEnvironment(ctx context.Context, id int64) (*model.Environment, error) {
	if f.getEnvironment == nil {
		return &model.Environment{ID: id, Name: "pilot-a"}, nil
	}
	return f.getEnvironment(ctx, id)
}

func (f *fakeStore) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	if f.listEnvironments == nil {
		return nil, nil
	}
	return f.listEnvironments(ctx)
}

func (f *fakeStore) UpdateEnvironment(ctx context.Context, id int64, name, envType string, actorID int64) (*model.Environment, error) {
	if f.updateEnvironment == nil {
		return nil, storage.ErrNotFound
	}
	return f.updateEnvironment(ctx, id, name, envType, actorID)
}

func (f *fakeStore) SetManualStatus(ctx context.Context, id int64, status model.ManualStatus, actorID int64) (*model.Environment, error) {
	if f.setManualStatus == nil {
		return nil, storage.ErrNotFound
	}
	return f.setManualStatus(ctx, id, status, actorID)
}

func (f *fakeStore) EnsureUser(ctx context.Context, username string) (*model.User, error) {
	if f.ensureUser == nil {
		return &model.User{ID: 1, Username: username, Role: model.RoleUser}, nil
	}
	return f.ensureUser(ctx, username)
}

func (f *fakeStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if f.getUser == nil {
		return nil, storage.ErrNotFound
	}
	return f.getUser(ctx, id)
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]model.User, error) {
	if f.listUsers == nil {
		return nil, nil
	}
	return f.listUsers(ctx)
}

func (f *fakeStore) ListAuditEntries(ctx context.Context, environmentID int64, limit int) ([]model.AuditEntry, error) {
	if f.listAuditEntries == nil {
		return nil, nil
	}
	return f.listAuditEntries(ctx, environmentID, limit)
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) Close() {}

// fakeAdmission records acquire/release calls and optionally fails.
type fakeAdmission struct {
	acquireErr error
	acquired   []int64
	released   []int64
}

func (f *fakeAdmission) Acquire(_ context.Context, environmentID int64, _ string) error {
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired = append(f.acquired, environmentID)
	return nil
}

func (f *fakeAdmission) Release(_ context.Context, environmentID int64) {
	f.released = append(f.released, environmentID)
}

// fakePublisher records published event types.
type fakePublisher struct {
	events []string
}

func (f *fakePublisher) Publish(_ context.Context, eventType string) {
	f.events = append(f.events, eventType)
}

func newTestHandlers(store *fakeStore, admission *fakeAdmission, publisher *fakePublisher) *Handlers {
	h := NewHandlers(store, admission, publisher, zap.NewNop(), nil)
	h.now = func() time.Time {
		t, _ := time.ParseInLocation("2006-01-02", "2026-03-16", time.UTC)
		return t
	}
	return h
}

// serve routes the request through a chi router so URL parameters
// resolve, with the given user injected as the authenticated caller.
func serve(h *Handlers, user *model.User, req *http.Request) *httptest.ResponseRecorder {
	if user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), user))
	}

	r := chi.NewRouter()
	r.Get("/api/bookings", h.HandleListBookings)
	r.Post("/api/bookings", h.HandleCreateBooking)
	r.Post("/api/bookings/{id}/cancel", h.HandleCancelBooking)
	r.Get("/api/environments", h.HandleListEnvironments)
	r.Get("/api/environments/status", h.HandleEnvironmentStatus)
	r.Put("/api/environments/{id}", h.HandleUpdateEnvironment)
	r.Put("/api/environments/{id}/status", h.HandleSetEnvironmentStatus)
	r.Get("/api/users", h.HandleListUsers)
	r.Get("/api/auth/me", h.HandleMe)
	r.Get("/api/admin/audit-log", h.HandleAuditLog)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}
