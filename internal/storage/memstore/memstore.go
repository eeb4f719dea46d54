// Package memstore — хранилище в памяти с тем же контрактом, что и storage.Storage.
// Используется в тестах сервисов.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

type state struct {
	users         map[int64]models.User
	subscriptions map[int64]models.Subscription
	approvals     map[int64]models.Approval
	cancellations map[int64]models.CancellationRequest
	events        []models.Event
	institutions  map[int64]models.InstitutionConnection
	reminded      map[int64]time.Time
	nextID        int64
}

func (st *state) clone() *state {
	c := &state{
		users:         make(map[int64]models.User, len(st.users)),
		subscriptions: make(map[int64]models.Subscription, len(st.subscriptions)),
		approvals:     make(map[int64]models.Approval, len(st.approvals)),
		cancellations: make(map[int64]models.CancellationRequest, len(st.cancellations)),
		events:        append([]models.Event(nil), st.events...),
		institutions:  make(map[int64]models.InstitutionConnection, len(st.institutions)),
		reminded:      make(map[int64]time.Time, len(st.reminded)),
		nextID:        st.nextID,
	}
	for k, v := range st.reminded {
		c.reminded[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.subscriptions {
		c.subscriptions[k] = v
	}
	for k, v := range st.approvals {
		c.approvals[k] = v
	}
	for k, v := range st.cancellations {
		c.cancellations[k] = v
	}
	for k, v := range st.institutions {
		c.institutions[k] = v
	}
	return c
}

type txKey struct{}

// Store хранит все сущности в памяти. Безопасен для конкурентного использования.
type Store struct {
	mu  sync.Mutex
	txm sync.Mutex
	st  *state
	now func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		st: &state{
			users:         map[int64]models.User{},
			subscriptions: map[int64]models.Subscription{},
			approvals:     map[int64]models.Approval{},
			cancellations: map[int64]models.CancellationRequest{},
			institutions:  map[int64]models.InstitutionConnection{},
			reminded:      map[int64]time.Time{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

// InTx выполняет fn атомарно: при ошибке состояние откатывается к снимку.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txm.Lock()
	defer s.txm.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// CreateUser добавляет пользователя.
func (s *Store) CreateUser(_ context.Context, email, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Email == email {
			return 0, fmt.Errorf("memstore.CreateUser: %w", models.ErrAlreadyExists)
		}
	}
	id := s.id()
	s.st.users[id] = models.User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: s.now()}
	return id, nil
}

// GetUserByID возвращает пользователя по ID.
func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return nil, fmt.Errorf("memstore.GetUserByID: %w", models.ErrNotFound)
	}
	return &u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("memstore.GetUserByEmail: %w", models.ErrNotFound)
}

// UpsertSubscription создаёт подписку или обновляет существующую с тем же мерчантом.
func (s *Store) UpsertSubscription(_ context.Context, sub models.Subscription) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, cur := range s.st.subscriptions {
		if cur.UserID == sub.UserID && cur.Merchant == sub.Merchant {
			if sub.Plan != nil {
				cur.Plan = sub.Plan
			}
			cur.Amount = sub.Amount
			cur.Interval = sub.Interval
			cur.NextRenewalAt = sub.NextRenewalAt
			cur.Status = models.StatusActive
			cur.UpdatedAt = now
			s.st.subscriptions[id] = cur
			return &cur, nil
		}
	}
	sub.ID = s.id()
	sub.Status = models.StatusActive
	sub.CreatedAt = now
	sub.UpdatedAt = now
	s.st.subscriptions[sub.ID] = sub
	return &sub, nil
}

// AddSubscription сохраняет подписку как есть (с заданным статусом).
func (s *Store) AddSubscription(sub models.Subscription) models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.id()
	if sub.Status == "" {
		sub.Status = models.StatusActive
	}
	if sub.Interval == "" {
		sub.Interval = models.IntervalMonthly
	}
	sub.CreatedAt = s.now()
	sub.UpdatedAt = sub.CreatedAt
	s.st.subscriptions[sub.ID] = sub
	return sub
}

func (s *Store) filterSubscriptions(keep func(models.Subscription) bool) []models.Subscription {
	out := make([]models.Subscription, 0)
	for _, sub := range s.st.subscriptions {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListSubscriptions возвращает подписки пользователя по возрастанию ID.
func (s *Store) ListSubscriptions(_ context.Context, userID int64) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterSubscriptions(func(sub models.Subscription) bool { return sub.UserID == userID }), nil
}

// ListUpcoming возвращает активные и отменяемые подписки с продлением не позже before.
func (s *Store) ListUpcoming(_ context.Context, userID int64, before time.Time) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterSubscriptions(func(sub models.Subscription) bool {
		return sub.UserID == userID &&
			(sub.Status == models.StatusActive || sub.Status == models.StatusCanceling) &&
			sub.NextRenewalAt != nil && !sub.NextRenewalAt.After(before)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextRenewalAt.Before(*out[j].NextRenewalAt) })
	return out, nil
}

// GetSubscription возвращает подписку, если она принадлежит пользователю.
func (s *Store) GetSubscription(_ context.Context, userID, id int64) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.st.subscriptions[id]
	if !ok || sub.UserID != userID {
		return nil, fmt.Errorf("memstore.GetSubscription: %w", models.ErrNotFound)
	}
	return &sub, nil
}

// GetSubscriptionByID возвращает подписку без проверки владельца.
func (s *Store) GetSubscriptionByID(_ context.Context, id int64) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.st.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("memstore.GetSubscriptionByID: %w", models.ErrNotFound)
	}
	return &sub, nil
}

// UpdateSubscriptionStatus меняет статус подписки.
func (s *Store) UpdateSubscriptionStatus(_ context.Context, id int64, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("memstore.UpdateSubscriptionStatus: %w: status %q", models.ErrInvalidInput, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.st.subscriptions[id]
	if !ok {
		return fmt.Errorf("memstore.UpdateSubscriptionStatus: %w", models.ErrNotFound)
	}
	sub.Status = status
	sub.UpdatedAt = s.now()
	s.st.subscriptions[id] = sub
	return nil
}

// DeleteSubscription удаляет подписку пользователя вместе с её попытками отмены.
// Решения пользователя остаются, ссылка на подписку обнуляется.
func (s *Store) DeleteSubscription(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.st.subscriptions[id]
	if !ok || sub.UserID != userID {
		return fmt.Errorf("memstore.DeleteSubscription: %w", models.ErrNotFound)
	}
	delete(s.st.subscriptions, id)
	delete(s.st.reminded, id)
	for rid, r := range s.st.cancellations {
		if r.SubscriptionID == id {
			delete(s.st.cancellations, rid)
		}
	}
	for aid, a := range s.st.approvals {
		if a.SubscriptionID == id {
			a.SubscriptionID = 0
			s.st.approvals[aid] = a
		}
	}
	return nil
}

// ListRenewalsDue возвращает активные подписки с продлением в (from, to],
// о котором ещё не отправлено напоминание.
func (s *Store) ListRenewalsDue(_ context.Context, from, to time.Time) ([]models.RenewalInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RenewalInfo, 0)
	for _, sub := range s.filterSubscriptions(func(sub models.Subscription) bool {
		return sub.Status == models.StatusActive && sub.NextRenewalAt != nil &&
			sub.NextRenewalAt.After(from) && !sub.NextRenewalAt.After(to) &&
			!s.st.reminded[sub.ID].Equal(*sub.NextRenewalAt)
	}) {
		out = append(out, models.RenewalInfo{
			SubscriptionID: sub.ID,
			Email:          s.st.users[sub.UserID].Email,
			Merchant:       sub.Merchant,
			Amount:         sub.Amount,
			NextRenewalAt:  *sub.NextRenewalAt,
		})
	}
	return out, nil
}

// MarkReminderSent запоминает отправленное напоминание о продлении renewalAt.
func (s *Store) MarkReminderSent(_ context.Context, id int64, renewalAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.subscriptions[id]; !ok {
		return fmt.Errorf("memstore.MarkReminderSent: %w", models.ErrNotFound)
	}
	s.st.reminded[id] = renewalAt
	return nil
}

// CreateApproval добавляет решение пользователя.
func (s *Store) CreateApproval(_ context.Context, userID, subscriptionID int64, decision string) (*models.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := models.Approval{
		ID:             s.id(),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Decision:       decision,
		DecidedAt:      s.now(),
	}
	s.st.approvals[a.ID] = a
	return &a, nil
}

// CountUserApprovals возвращает число решений пользователя.
func (s *Store) CountUserApprovals(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.st.approvals {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// CountApprovals возвращает число решений по подписке.
func (s *Store) CountApprovals(_ context.Context, subscriptionID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.st.approvals {
		if a.SubscriptionID == subscriptionID {
			n++
		}
	}
	return n, nil
}

// CreateCancellation создаёт попытку отмены.
func (s *Store) CreateCancellation(_ context.Context, userID, subscriptionID int64, method string, status models.CancelStatus) (*models.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.subscriptions[subscriptionID]; !ok {
		return nil, fmt.Errorf("memstore.CreateCancellation: %w", models.ErrNotFound)
	}
	r := models.CancellationRequest{
		ID:             s.id(),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Method:         method,
		Status:         status,
		StartedAt:      s.now(),
	}
	s.st.cancellations[r.ID] = r
	return &r, nil
}

// GetCancellation возвращает попытку отмены по ID.
func (s *Store) GetCancellation(_ context.Context, id int64) (*models.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.cancellations[id]
	if !ok {
		return nil, fmt.Errorf("memstore.GetCancellation: %w", models.ErrNotFound)
	}
	return &r, nil
}

// LatestCancellation возвращает последнюю попытку отмены подписки.
func (s *Store) LatestCancellation(_ context.Context, subscriptionID int64) (*models.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.CancellationRequest
	for _, r := range s.st.cancellations {
		if r.SubscriptionID != subscriptionID {
			continue
		}
		if latest == nil || r.ID > latest.ID {
			r := r
			latest = &r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("memstore.LatestCancellation: %w", models.ErrNotFound)
	}
	return latest, nil
}

// SetCancellationVendorRef сохраняет ссылку на запрос у мерчанта.
func (s *Store) SetCancellationVendorRef(_ context.Context, id int64, vendorRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.cancellations[id]
	if !ok {
		return fmt.Errorf("memstore.SetCancellationVendorRef: %w", models.ErrNotFound)
	}
	r.VendorRef = &vendorRef
	s.st.cancellations[id] = r
	return nil
}

// FinishCancellation переводит попытку в конечный статус.
func (s *Store) FinishCancellation(_ context.Context, id int64, status models.CancelStatus, errText string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.cancellations[id]
	if !ok {
		return fmt.Errorf("memstore.FinishCancellation: %w", models.ErrNotFound)
	}
	r.Status = status
	r.Error = nil
	if status == models.CancelFailed && errText != "" {
		r.Error = &errText
	}
	r.CompletedAt = &at
	s.st.cancellations[id] = r
	return nil
}

// AppendEvent добавляет запись в журнал.
func (s *Store) AppendEvent(_ context.Context, userID int64, eventType, message string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("memstore.AppendEvent: %w", err)
		}
		raw = b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events = append(s.st.events, models.Event{
		ID:        s.id(),
		UserID:    userID,
		Type:      eventType,
		Message:   message,
		Payload:   raw,
		CreatedAt: s.now(),
	})
	return nil
}

// ListEvents возвращает последние события пользователя, новые первыми.
func (s *Store) ListEvents(_ context.Context, userID int64, limit int) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0)
	for i := len(s.st.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.st.events[i].UserID == userID {
			out = append(out, s.st.events[i])
		}
	}
	return out, nil
}

// EventTypes возвращает типы событий пользователя в порядке добавления.
func (s *Store) EventTypes(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.st.events {
		if e.UserID == userID {
			out = append(out, e.Type)
		}
	}
	return out
}

// Cancellations возвращает все попытки отмены подписки по возрастанию ID.
func (s *Store) Cancellations(subscriptionID int64) []models.CancellationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CancellationRequest
	for _, r := range s.st.cancellations {
		if r.SubscriptionID == subscriptionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateInstitution сохраняет подключение банковского счёта.
func (s *Store) CreateInstitution(_ context.Context, userID int64, provider, accessTokenRef string) (*models.InstitutionConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.InstitutionConnection{
		ID:             s.id(),
		UserID:         userID,
		Provider:       provider,
		Status:         models.ConnectionLinked,
		AccessTokenRef: accessTokenRef,
		CreatedAt:      s.now(),
	}
	s.st.institutions[c.ID] = c
	return &c, nil
}

// LatestInstitution возвращает последнее связанное подключение провайдера.
func (s *Store) LatestInstitution(_ context.Context, userID int64, provider string) (*models.InstitutionConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.InstitutionConnection
	for _, c := range s.st.institutions {
		if c.UserID != userID || c.Provider != provider || c.Status != models.ConnectionLinked {
			continue
		}
		if latest == nil || c.ID > latest.ID {
			c := c
			latest = &c
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("memstore.LatestInstitution: %w", models.ErrNotFound)
	}
	return latest, nil
}
