package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// memoryDirectory is an in-memory UserDirectory whose units of work buffer
// writes until Commit.
type memoryDirectory struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]User

	findErr   error
	beginErr  error
	insertErr error
	updateErr error
	deleteErr error
	commitErr error
	pingErr   error

	commits   int
	rollbacks int
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{users: map[int64]User{}}
}

func (d *memoryDirectory) seed(username, email, passwordHash string) User {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	now := time.Now().UTC()
	user := User{
		ID:           d.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.users[user.ID] = user
	return user
}

func (d *memoryDirectory) user(id int64) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	return user, ok
}

func (d *memoryDirectory) rename(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, user := range d.users {
		if user.Username == from {
			user.Username = to
			d.users[id] = user
		}
	}
}

func (d *memoryDirectory) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

func (d *memoryDirectory) FindByID(_ context.Context, id int64) (User, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return User{}, false, d.findErr
	}
	user, ok := d.users[id]
	return user, ok, nil
}

func (d *memoryDirectory) FindByField(_ context.Context, field UserField, value string) (User, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return User{}, false, d.findErr
	}
	for _, user := range d.users {
		switch field {
		case UserFieldUsername:
			if user.Username == value {
				return user, true, nil
			}
		case UserFieldEmail:
			if user.Email == value {
				return user, true, nil
			}
		default:
			return User{}, false, fmt.Errorf("memory directory: unknown field %q", field)
		}
	}
	return User{}, false, nil
}

func (d *memoryDirectory) Begin(context.Context) (UnitOfWork, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return &memoryUnitOfWork{directory: d}, nil
}

func (d *memoryDirectory) Ping(context.Context) error {
	return d.pingErr
}

type memoryUnitOfWork struct {
	directory *memoryDirectory
	ops       []func(map[int64]User) error
	done      bool
}

func (u *memoryUnitOfWork) Insert(_ context.Context, in NewUser) (User, error) {
	d := u.directory
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.insertErr != nil {
		return User{}, d.insertErr
	}
	d.nextID++
	now := time.Now().UTC()
	user := User{
		ID:           d.nextID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.ops = append(u.ops, func(users map[int64]User) error {
		for _, existing := range users {
			if existing.Username == user.Username || existing.Email == user.Email {
				return errors.New("memory directory: unique constraint violated")
			}
		}
		users[user.ID] = user
		return nil
	})
	return user, nil
}

func (u *memoryUnitOfWork) Update(_ context.Context, changes UserChanges) error {
	d := u.directory
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.updateErr != nil {
		return d.updateErr
	}
	u.ops = append(u.ops, func(users map[int64]User) error {
		user, ok := users[changes.UserID]
		if !ok {
			return fmt.Errorf("memory directory: user %d not found", changes.UserID)
		}
		if changes.Username != "" {
			user.Username = changes.Username
		}
		if changes.Email != "" {
			user.Email = changes.Email
		}
		if changes.PasswordHash != "" {
			user.PasswordHash = changes.PasswordHash
		}
		user.UpdatedAt = time.Now().UTC()
		users[user.ID] = user
		return nil
	})
	return nil
}

func (u *memoryUnitOfWork) Delete(_ context.Context, id int64) error {
	d := u.directory
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	u.ops = append(u.ops, func(users map[int64]User) error {
		if _, ok := users[id]; !ok {
			return fmt.Errorf("memory directory: user %d not found", id)
		}
		delete(users, id)
		return nil
	})
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	d := u.directory
	d.mu.Lock()
	defer d.mu.Unlock()
	if u.done {
		return errors.New("memory directory: unit of work already finished")
	}
	if d.commitErr != nil {
		return d.commitErr
	}
	staged := make(map[int64]User, len(d.users))
	for id, user := range d.users {
		staged[id] = user
	}
	for _, op := range u.ops {
		if err := op(staged); err != nil {
			return err
		}
	}
	d.users = staged
	d.commits++
	u.done = true
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	d := u.directory
	d.mu.Lock()
	defer d.mu.Unlock()
	if u.done {
		return nil
	}
	u.ops = nil
	u.done = true
	d.rollbacks++
	return nil
}

// plainHasher keeps tests fast; it is not a real hash.
type plainHasher struct{}

func (plainHasher) Hash(plaintext string) (string, error) {
	return "plain$" + plaintext, nil
}

func (plainHasher) Verify(plaintext string, digest string) bool {
	return strings.TrimPrefix(digest, "plain$") == plaintext && strings.HasPrefix(digest, "plain$")
}

type recordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]int
	tags       map[string][]map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		counters:   map[string]int64{},
		histograms: map[string]int{},
		tags:       map[string][]map[string]string{},
	}
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
	m.tags[name] = append(m.tags[name], tags)
}

func (m *recordingMetrics) ObserveHistogram(_ context.Context, name string, _ float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[name]++
}

func (m *recordingMetrics) counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *recordingMetrics) lastTags(name string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.tags[name]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

type cachingProfileReader struct {
	mu          sync.Mutex
	directory   UserDirectory
	cache       map[int64]UserProfile
	invalidated []int64
}

func (r *cachingProfileReader) GetUserProfile(ctx context.Context, id int64) (UserProfile, error) {
	r.mu.Lock()
	if profile, ok := r.cache[id]; ok {
		r.mu.Unlock()
		return profile, nil
	}
	r.mu.Unlock()
	profile, err := directoryProfileReader{directory: r.directory}.GetUserProfile(ctx, id)
	if err != nil {
		return UserProfile{}, err
	}
	r.mu.Lock()
	r.cache[id] = profile
	r.mu.Unlock()
	return profile, nil
}

func (r *cachingProfileReader) InvalidateUserProfile(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, id)
	r.invalidated = append(r.invalidated, id)
	return nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	svc       *Service
	directory *memoryDirectory
	metrics   *recordingMetrics
	clock     *fakeClock
}

func newTestFixture(opts ...Option) testFixture {
	directory := newMemoryDirectory()
	metrics := newRecordingMetrics()
	clock := newFakeClock()
	base := []Option{
		WithLogger(stubLogger{}),
		WithUserDirectory(directory),
		WithCredentialHasher(plainHasher{}),
		WithMetricsRecorder(metrics),
		WithClock(clock.Now),
	}
	svc, err := NewService(Config{}, append(base, opts...)...)
	if err != nil {
		panic(err)
	}
	return testFixture{svc: svc, directory: directory, metrics: metrics, clock: clock}
}
