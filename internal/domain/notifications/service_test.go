package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	created []Notification
	emails  map[string]string
}

func (f *fakeStore) CreateNotification(_ context.Context, userID, ntype, title, body string) error {
	f.created = append(f.created, Notification{ID: userID, Type: ntype, Title: title, Body: body})
	return nil
}

func (f *fakeStore) UserEmail(_ context.Context, userID string) (string, error) {
	email, ok := f.emails[userID]
	if !ok {
		return "", errors.New("no rows")
	}
	return email, nil
}

func (f *fakeStore) ListNotifications(context.Context, string, int, int) ([]Notification, error) {
	return f.created, nil
}

func (f *fakeStore) CountUnread(context.Context, string) (int, error) {
	return len(f.created), nil
}

func (f *fakeStore) MarkRead(context.Context, string, string) error {
	return nil
}

type sent struct {
	from, to, subject string
}

type fakeMailer struct {
	sent []sent
	err  error
}

func (m *fakeMailer) Send(_ context.Context, from, to, subject, _ string) error {
	m.sent = append(m.sent, sent{from: from, to: to, subject: subject})
	return m.err
}

func TestCreateMirrorsByEmail(t *testing.T) {
	store := &fakeStore{emails: map[string]string{"u1": "ana@example.com"}}
	mailer := &fakeMailer{}
	svc := New(store, mailer, "avances@example.com")

	require.NoError(t, svc.Create(context.Background(), "u1", TypeAdvanceStatusChanged, "Advance approved", "body"))
	require.Len(t, store.created, 1)
	assert.Equal(t, []sent{{from: "avances@example.com", to: "ana@example.com", subject: "Advance approved"}}, mailer.sent)
}

func TestCreateIgnoresEmailFailures(t *testing.T) {
	store := &fakeStore{emails: map[string]string{"u1": "ana@example.com"}}
	svc := New(store, &fakeMailer{err: errors.New("smtp down")}, "")

	require.NoError(t, svc.Create(context.Background(), "u1", TypeAdvanceRequested, "t", "b"))
	require.NoError(t, svc.Create(context.Background(), "missing", TypeAdvanceRequested, "t", "b"))
	assert.Len(t, store.created, 2)
	assert.Equal(t, "no-reply@example.com", svc.DefaultFrom)
}

func TestCreateWithoutMailer(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, nil, "")
	require.NoError(t, svc.Create(context.Background(), "u1", TypeSettlementDue, "t", "b"))
	assert.Len(t, store.created, 1)
}
