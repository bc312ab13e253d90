package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/events"
	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/model"
	"github.com/herald/herald/internal/provider"
	"github.com/herald/herald/internal/repository"
)

type memStore struct {
	mu         sync.Mutex
	campaigns  map[string]*model.Campaign
	recipients []*model.Recipient
	claims     map[string]string
	attempts   []*model.Attempt
	claimCalls int

	failSave     map[string]bool
	lostClaims   map[string]bool
	refreshErr   error
	claimedByAll bool
}

func newMemStore(c *model.Campaign, recipients ...*model.Recipient) *memStore {
	for _, rc := range recipients {
		rc.CampaignID = c.ID
		if rc.Status == "" {
			rc.Status = model.StatusPending
		}
	}
	return &memStore{
		campaigns:  map[string]*model.Campaign{c.ID: c},
		recipients: recipients,
		claims:     map[string]string{},
		failSave:   map[string]bool{},
		lostClaims: map[string]bool{},
	}
}

func (s *memStore) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) RefreshCompletion(ctx context.Context, campaignID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return false, s.refreshErr
	}
	c := s.campaigns[campaignID]
	pending := 0
	for _, rc := range s.recipients {
		if rc.CampaignID == campaignID && rc.Status == model.StatusPending {
			pending++
		}
	}
	if len(s.recipients) > 0 && pending == 0 {
		c.Completed = true
	}
	return c.Completed, nil
}

func (s *memStore) ListPending(ctx context.Context, campaignID string) ([]*model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Recipient
	for _, rc := range s.recipients {
		if rc.CampaignID == campaignID && rc.Status == model.StatusPending {
			cp := *rc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) Claim(ctx context.Context, recipientID, token string, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimCalls++
	if s.claimedByAll {
		return false, nil
	}
	rc := s.find(recipientID)
	if rc.Status != model.StatusPending || s.claims[recipientID] != "" {
		return false, nil
	}
	s.claims[recipientID] = token
	return true, nil
}

func (s *memStore) SaveOutcome(ctx context.Context, o *model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave[o.RecipientID] {
		return errors.New("connection reset by peer")
	}
	if s.lostClaims[o.RecipientID] || s.claims[o.RecipientID] != o.ClaimToken {
		return repository.ErrClaimLost
	}
	rc := s.find(o.RecipientID)
	rc.Status = o.Status
	rc.SentAt = o.SentAt
	rc.ErrorMessage = o.ErrorMessage
	s.attempts = append(s.attempts, o.Attempts...)
	delete(s.claims, o.RecipientID)
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, recipientID, token, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lostClaims[recipientID] || s.claims[recipientID] != token {
		return repository.ErrClaimLost
	}
	rc := s.find(recipientID)
	rc.Status = model.StatusFailed
	rc.ErrorMessage = &reason
	delete(s.claims, recipientID)
	return nil
}

func (s *memStore) find(id string) *model.Recipient {
	for _, rc := range s.recipients {
		if rc.ID == id {
			return rc
		}
	}
	panic("unknown recipient " + id)
}

func (s *memStore) recipient(id string) *model.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id)
}

func (s *memStore) attemptsFor(id string) []*model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Attempt
	for _, a := range s.attempts {
		if a.RecipientID == id {
			out = append(out, a)
		}
	}
	return out
}

// stubProvider fails destinations listed in failures with the mapped reason
type stubProvider struct {
	name     string
	failures map[string]string
	delay    time.Duration
	panicOn  string
	calls    atomic.Int64
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Send(ctx context.Context, msg provider.Message) (*provider.Receipt, error) {
	p.calls.Add(1)
	if msg.To == p.panicOn {
		panic("boom")
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if reason, ok := p.failures[msg.To]; ok {
		return nil, &provider.SendError{Provider: p.name, Reason: reason}
	}
	return &provider.Receipt{ID: "id-" + msg.To, Raw: map[string]interface{}{"to": msg.To}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// slowProvider signals once a send is under way and then succeeds after hold
type slowProvider struct {
	started chan struct{}
	once    sync.Once
	hold    time.Duration
}

func (p *slowProvider) Name() string { return "slow" }

func (p *slowProvider) Send(ctx context.Context, msg provider.Message) (*provider.Receipt, error) {
	p.once.Do(func() { close(p.started) })
	time.Sleep(p.hold)
	return &provider.Receipt{ID: "id-" + msg.To}, nil
}

type fakeLocker struct {
	held     bool
	err      error
	unlocked bool
}

func (l *fakeLocker) TryLock(ctx context.Context, key, token string, ttl time.Duration) error {
	if l.err != nil {
		return l.err
	}
	if l.held {
		return database.ErrLockHeld
	}
	return nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.unlocked = true
	return nil
}

func strPtr(s string) *string { return &s }

func testConfig() config.DispatchConfig {
	return config.DispatchConfig{Workers: 1, SendTimeout: time.Second, ClaimLease: time.Minute, LockTTL: time.Minute}
}

func staticProviders(email, sms provider.Provider) ProviderFactory {
	return func(ctx context.Context) (*provider.Set, error) {
		return &provider.Set{Email: email, SMS: sms}, nil
	}
}

func newTestEngine(store *memStore, email, sms provider.Provider, opts ...Option) *Engine {
	return NewEngine(store, store, staticProviders(email, sms), testConfig(), logger.Nop(), opts...)
}

func campaign(kind model.MessageKind) *model.Campaign {
	return &model.Campaign{ID: "c1", Name: "Spring sale", Template: "Hi {{first_name}}", Kind: kind}
}

func TestDispatch_CampaignNotFound(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail))
	e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"})

	_, err := e.Dispatch(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestDispatch_AlreadyCompleted(t *testing.T) {
	c := campaign(model.KindEmail)
	c.Completed = true
	store := newMemStore(c, &model.Recipient{ID: "r1", FirstName: "Ann", Email: strPtr("ann@example.com")})
	e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"})

	_, err := e.Dispatch(context.Background(), "c1")

	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Zero(t, store.claimCalls)
}

func TestDispatch_NoPendingRecipients(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail),
		&model.Recipient{ID: "r1", Status: model.StatusSkipped},
	)
	e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"})

	_, err := e.Dispatch(context.Background(), "c1")

	assert.ErrorIs(t, err, ErrNoPendingRecipients)
}

func TestDispatch_ProviderInitErrorAbortsBeforeClaims(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	initErr := &provider.InitError{Provider: "email", Err: errors.New("gmail: credentials JSON or refresh token is required")}
	e := NewEngine(store, store, func(ctx context.Context) (*provider.Set, error) {
		return nil, initErr
	}, testConfig(), logger.Nop())

	_, err := e.Dispatch(context.Background(), "c1")

	var got *provider.InitError
	require.True(t, errors.As(err, &got))
	assert.Zero(t, store.claimCalls)
	assert.Equal(t, model.StatusPending, store.recipient("r1").Status)
}

func TestDispatch_SendsAndCompletes(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail),
		&model.Recipient{ID: "r1", FirstName: "Ann", Email: strPtr("ann@example.com")},
		&model.Recipient{ID: "r2", FirstName: "Bob", Email: strPtr("bob@example.com")},
	)
	email := &stubProvider{name: "email", failures: map[string]string{"bob@example.com": "address rejected by mail server"}}
	pub := &recordingPublisher{}
	e := newTestEngine(store, email, &stubProvider{name: "sms"}, WithPublisher(pub))

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, &Result{Sent: 1, Failed: 1, Completed: true}, res)

	ann := store.recipient("r1")
	assert.Equal(t, model.StatusSent, ann.Status)
	assert.NotNil(t, ann.SentAt)
	assert.Nil(t, ann.ErrorMessage)

	bob := store.recipient("r2")
	assert.Equal(t, model.StatusFailed, bob.Status)
	require.NotNil(t, bob.ErrorMessage)
	assert.Equal(t, "address rejected by mail server", *bob.ErrorMessage)

	attempts := store.attemptsFor("r1")
	require.Len(t, attempts, 1)
	assert.Equal(t, "Hi Ann", attempts[0].FinalMessage)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, "ann@example.com", attempts[0].ProviderResponse["to"])

	require.Len(t, pub.events, 3)
	assert.Equal(t, events.TypeCampaignCompleted, pub.events[2].Type)
}

func TestDispatch_BothChannelsOneFails(t *testing.T) {
	store := newMemStore(campaign(model.KindBoth),
		&model.Recipient{ID: "r1", FirstName: "Ann", Email: strPtr("ann@example.com"), Phone: strPtr("12")},
	)
	sms := &stubProvider{name: "sms", failures: map[string]string{"12": "invalid phone number"}}
	e := newTestEngine(store, &stubProvider{name: "email"}, sms)

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, model.StatusSent, store.recipient("r1").Status)

	attempts := store.attemptsFor("r1")
	require.Len(t, attempts, 2)
	assert.Equal(t, model.ChannelEmail, attempts[0].Channel)
	assert.True(t, attempts[0].Success)
	assert.Nil(t, attempts[0].ErrorDetail)
	assert.Equal(t, model.ChannelSMS, attempts[1].Channel)
	assert.False(t, attempts[1].Success)
	require.NotNil(t, attempts[1].ErrorDetail)
	assert.Equal(t, "invalid phone number", *attempts[1].ErrorDetail)
}

func TestDispatch_BothChannelsFail(t *testing.T) {
	store := newMemStore(campaign(model.KindBoth),
		&model.Recipient{ID: "r1", Email: strPtr("fail@example.com"), Phone: strPtr("601fail234")},
	)
	email := &stubProvider{name: "email", failures: map[string]string{"fail@example.com": "address rejected by mail server"}}
	sms := &stubProvider{name: "sms", failures: map[string]string{"601fail234": "number rejected by carrier"}}
	e := newTestEngine(store, email, sms)

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	rc := store.recipient("r1")
	require.NotNil(t, rc.ErrorMessage)
	assert.Equal(t, "Email: address rejected by mail server; SMS: number rejected by carrier", *rc.ErrorMessage)
}

func TestDispatch_BothWithOnlyPhone(t *testing.T) {
	store := newMemStore(campaign(model.KindBoth), &model.Recipient{ID: "r1", Phone: strPtr("601234567")})
	email := &stubProvider{name: "email"}
	e := newTestEngine(store, email, &stubProvider{name: "sms"})

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Zero(t, email.calls.Load())
	require.Len(t, store.attemptsFor("r1"), 1)
}

func TestDispatch_MissingContact(t *testing.T) {
	tests := []struct {
		kind model.MessageKind
		rc   *model.Recipient
		want string
	}{
		{model.KindEmail, &model.Recipient{ID: "r1", Phone: strPtr("601234567")}, "missing required contact: email"},
		{model.KindSMS, &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")}, "missing required contact: phone"},
		{model.KindBoth, &model.Recipient{ID: "r1"}, "missing required contact: email or phone"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			store := newMemStore(campaign(tt.kind), tt.rc)
			e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"})

			res, err := e.Dispatch(context.Background(), "c1")

			require.NoError(t, err)
			assert.Equal(t, 1, res.Failed)
			rc := store.recipient("r1")
			assert.Equal(t, model.StatusFailed, rc.Status)
			require.NotNil(t, rc.ErrorMessage)
			assert.Equal(t, tt.want, *rc.ErrorMessage)
			assert.Empty(t, store.attemptsFor("r1"))
		})
	}
}

func TestDispatch_StorageFailureIsIsolated(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail),
		&model.Recipient{ID: "r1", Email: strPtr("ann@example.com")},
		&model.Recipient{ID: "r2", Email: strPtr("bob@example.com")},
	)
	store.failSave["r1"] = true
	e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"})

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, &Result{Sent: 1, Failed: 1, Completed: true}, res)
	rc := store.recipient("r1")
	assert.Equal(t, model.StatusFailed, rc.Status)
	assert.Equal(t, "internal server error", *rc.ErrorMessage)
	assert.Equal(t, model.StatusSent, store.recipient("r2").Status)
}

func TestDispatch_ProviderPanicIsIsolated(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail),
		&model.Recipient{ID: "r1", Email: strPtr("ann@example.com")},
		&model.Recipient{ID: "r2", Email: strPtr("bob@example.com")},
	)
	e := newTestEngine(store, &stubProvider{name: "email", panicOn: "ann@example.com"}, &stubProvider{name: "sms"})

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, model.StatusFailed, store.recipient("r1").Status)
}

func TestDispatch_SendTimeout(t *testing.T) {
	store := newMemStore(campaign(model.KindSMS), &model.Recipient{ID: "r1", Phone: strPtr("601234567")})
	cfg := testConfig()
	cfg.SendTimeout = 20 * time.Millisecond
	sms := &stubProvider{name: "sms", delay: 500 * time.Millisecond}
	e := NewEngine(store, store, staticProviders(&stubProvider{name: "email"}, sms), cfg, logger.Nop())

	start := time.Now()
	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "send timed out", *store.recipient("r1").ErrorMessage)
}

func TestDispatch_RedispatchProcessesNothing(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	email := &stubProvider{name: "email"}
	e := newTestEngine(store, email, &stubProvider{name: "sms"})

	_, err := e.Dispatch(context.Background(), "c1")
	require.NoError(t, err)

	_, err = e.Dispatch(context.Background(), "c1")

	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, int64(1), email.calls.Load())
}

func TestDispatch_RedispatchWithoutCompletionFlag(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	store.refreshErr = errors.New("database is read-only")
	email := &stubProvider{name: "email"}
	e := newTestEngine(store, email, &stubProvider{name: "sms"})

	res, err := e.Dispatch(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, res.Completed)

	_, err = e.Dispatch(context.Background(), "c1")

	assert.ErrorIs(t, err, ErrNoPendingRecipients)
	assert.Equal(t, int64(1), email.calls.Load())
}

func TestDispatch_SkipsRecipientsClaimedElsewhere(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	store.claimedByAll = true
	email := &stubProvider{name: "email"}
	e := newTestEngine(store, email, &stubProvider{name: "sms"})

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Zero(t, email.calls.Load())
	assert.Equal(t, model.StatusPending, store.recipient("r1").Status)
}

func TestDispatch_ConcurrentInvocationsSendOnce(t *testing.T) {
	var recipients []*model.Recipient
	for i := 0; i < 40; i++ {
		recipients = append(recipients, &model.Recipient{ID: fmt.Sprintf("r%d", i), Email: strPtr(fmt.Sprintf("user%d@example.com", i))})
	}
	store := newMemStore(campaign(model.KindEmail), recipients...)
	email := &stubProvider{name: "email", delay: time.Millisecond}
	cfg := testConfig()
	cfg.Workers = 4

	var wg sync.WaitGroup
	var sent atomic.Int64
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := NewEngine(store, store, staticProviders(email, &stubProvider{name: "sms"}), cfg, logger.Nop())
			res, err := e.Dispatch(context.Background(), "c1")
			if err == nil {
				sent.Add(int64(res.Sent))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(40), email.calls.Load())
	assert.Equal(t, int64(40), sent.Load())
}

func TestDispatch_LockHeld(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"}, WithLocker(&fakeLocker{held: true}))

	_, err := e.Dispatch(context.Background(), "c1")

	assert.ErrorIs(t, err, ErrDispatchInProgress)
	assert.Zero(t, store.claimCalls)
}

func TestDispatch_LockReleasedAndOutageTolerated(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	locker := &fakeLocker{}
	e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"}, WithLocker(locker))

	_, err := e.Dispatch(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, locker.unlocked)

	store = newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	e = newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"}, WithLocker(&fakeLocker{err: errors.New("dial tcp: connection refused")}))

	res, err := e.Dispatch(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestDispatch_CancelledContextLeavesRecipientsPending(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail),
		&model.Recipient{ID: "r1", Email: strPtr("ann@example.com")},
		&model.Recipient{ID: "r2", Email: strPtr("bob@example.com")},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	email := &stubProvider{name: "email"}
	e := newTestEngine(store, email, &stubProvider{name: "sms"})

	res, err := e.Dispatch(ctx, "c1")

	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Zero(t, email.calls.Load())
	assert.Equal(t, model.StatusPending, store.recipient("r2").Status)
}

func TestDispatch_CancelDuringSendKeepsDeliveredOutcome(t *testing.T) {
	store := newMemStore(campaign(model.KindEmail), &model.Recipient{ID: "r1", Email: strPtr("ann@example.com")})
	email := &slowProvider{started: make(chan struct{}), hold: 50 * time.Millisecond}
	e := newTestEngine(store, email, &stubProvider{name: "sms"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-email.started
		cancel()
	}()

	res, err := e.Dispatch(ctx, "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Zero(t, res.Failed)
	rc := store.recipient("r1")
	assert.Equal(t, model.StatusSent, rc.Status)
	assert.Nil(t, rc.ErrorMessage)
	attempts := store.attemptsFor("r1")
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
}

func TestDispatch_LostClaimIsNotCounted(t *testing.T) {
	tests := []struct {
		name     string
		failSave bool
	}{
		{"outcome save", false},
		{"failure save", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(campaign(model.KindEmail),
				&model.Recipient{ID: "r1", Email: strPtr("ann@example.com")},
				&model.Recipient{ID: "r2", Email: strPtr("bob@example.com")},
			)
			store.lostClaims["r1"] = true
			store.failSave["r1"] = tt.failSave
			pub := &recordingPublisher{}
			e := newTestEngine(store, &stubProvider{name: "email"}, &stubProvider{name: "sms"}, WithPublisher(pub))

			res, err := e.Dispatch(context.Background(), "c1")

			require.NoError(t, err)
			assert.Equal(t, 1, res.Sent)
			assert.Zero(t, res.Failed)
			assert.Equal(t, model.StatusPending, store.recipient("r1").Status)
			assert.NotContains(t, pub.types(), events.TypeRecipientFailed)
			for _, ev := range pub.events {
				assert.NotEqual(t, "r1", ev.RecipientID)
			}
		})
	}
}

func TestDispatch_BothWithSubstituteSMSRejectsShortNumber(t *testing.T) {
	store := newMemStore(campaign(model.KindBoth), &model.Recipient{
		ID:    "r1",
		Email: strPtr("ann@example.com"),
		Phone: strPtr("12345"),
	})
	email := provider.NewSubstituteEmail(provider.SubstituteSettings{}, nil, logger.Nop())
	sms := provider.NewSubstituteSMS(provider.SubstituteSettings{}, nil, logger.Nop())
	e := newTestEngine(store, email, sms)

	res, err := e.Dispatch(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, model.StatusSent, store.recipient("r1").Status)

	attempts := store.attemptsFor("r1")
	require.Len(t, attempts, 2)
	assert.Equal(t, model.ChannelEmail, attempts[0].Channel)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, model.ChannelSMS, attempts[1].Channel)
	assert.False(t, attempts[1].Success)
	require.NotNil(t, attempts[1].ErrorDetail)
	assert.Equal(t, "invalid phone number", *attempts[1].ErrorDetail)
}

func TestRunLabel(t *testing.T) {
	assert.Equal(t, "ok", runLabel(nil))
	assert.Equal(t, "in_progress", runLabel(ErrDispatchInProgress))
	assert.Equal(t, "init_failed", runLabel(&provider.InitError{Provider: "sms", Err: errors.New("x")}))
	assert.Equal(t, "error", runLabel(errors.New("x")))
}
