package employee

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/notifications"
	"wageadvance/internal/platform/crypto"
	"wageadvance/internal/platform/storage"
)

type fakeStore struct {
	mu          sync.Mutex
	seq         int
	employees   map[string]Employee
	accounts    map[string]Account
	payment     map[string]SealedPaymentInfo
	documents   map[string]string
	withAdvance map[string]bool
	companies   map[string]string
	banks       map[string]bool
	companyUser map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employees:   map[string]Employee{},
		accounts:    map[string]Account{},
		payment:     map[string]SealedPaymentInfo{},
		documents:   map[string]string{},
		withAdvance: map[string]bool{},
		companies:   map[string]string{"J-12345678-9": "co-1"},
		banks:       map[string]bool{"0102": true},
		companyUser: map[string][]string{"co-1": {"company-user-1"}},
	}
}

func (f *fakeStore) CreateWithUser(_ context.Context, emp NewEmployee, account Account) (Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.employees {
		if existing.Email == emp.Email || (existing.CompanyID == emp.CompanyID && existing.Cedula == emp.Cedula) {
			return Employee{}, ErrDuplicate
		}
	}
	f.seq++
	now := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)
	created := Employee{
		ID:               fmt.Sprintf("emp-%d", f.seq),
		UserID:           fmt.Sprintf("user-%d", f.seq),
		CompanyID:        emp.CompanyID,
		FirstName:        emp.FirstName,
		LastName:         emp.LastName,
		Email:            emp.Email,
		Cedula:           emp.Cedula,
		Phone:            emp.Phone,
		MonthlySalary:    emp.MonthlySalary,
		IsActive:         true,
		SelfRegistered:   account.SelfRegistered,
		MustUploadCedula: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.employees[created.ID] = created
	f.accounts[created.ID] = account
	return created, nil
}

func (f *fakeStore) CompanyIDByRIF(_ context.Context, rif string) (string, error) {
	id, ok := f.companies[rif]
	if !ok {
		return "", ErrCompanyNotFound
	}
	return id, nil
}

func (f *fakeStore) Get(_ context.Context, employeeID string) (Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	emp, ok := f.employees[employeeID]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return emp, nil
}

func (f *fakeStore) GetByUserID(_ context.Context, userID string) (Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, emp := range f.employees {
		if emp.UserID == userID {
			return emp, nil
		}
	}
	return Employee{}, ErrNotFound
}

func (f *fakeStore) List(_ context.Context, companyID string, filter ListFilter) ([]Employee, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Employee
	for _, emp := range f.employees {
		if emp.CompanyID != companyID {
			continue
		}
		if filter.Approved != nil && emp.IsApproved != *filter.Approved {
			continue
		}
		out = append(out, emp)
	}
	return out, len(out), nil
}

func (f *fakeStore) update(employeeID string, fn func(*Employee)) (Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	emp, ok := f.employees[employeeID]
	if !ok {
		return Employee{}, ErrNotFound
	}
	fn(&emp)
	emp.UpdatedAt = emp.UpdatedAt.Add(time.Minute)
	f.employees[employeeID] = emp
	return emp, nil
}

func (f *fakeStore) SetApproved(_ context.Context, employeeID string, approved bool) (Employee, error) {
	return f.update(employeeID, func(e *Employee) {
		e.IsApproved = approved
		e.IsVerified = approved
	})
}

func (f *fakeStore) SetActive(_ context.Context, employeeID string, active bool) (Employee, error) {
	return f.update(employeeID, func(e *Employee) { e.IsActive = active })
}

func (f *fakeStore) UpdateProfile(_ context.Context, employeeID string, upd ProfileUpdate) (Employee, error) {
	return f.update(employeeID, func(e *Employee) {
		if upd.Phone != nil {
			e.Phone = *upd.Phone
		}
		if upd.MonthlySalary != nil {
			e.MonthlySalary = *upd.MonthlySalary
		}
	})
}

func (f *fakeStore) Delete(_ context.Context, employeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.withAdvance[employeeID] {
		return ErrHasAdvances
	}
	if _, ok := f.employees[employeeID]; !ok {
		return ErrNotFound
	}
	delete(f.employees, employeeID)
	return nil
}

func (f *fakeStore) PaymentInfo(_ context.Context, employeeID string) (SealedPaymentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payment[employeeID], nil
}

func (f *fakeStore) UpdatePaymentInfo(_ context.Context, employeeID string, info SealedPaymentInfo) (Employee, error) {
	f.mu.Lock()
	f.payment[employeeID] = info
	f.mu.Unlock()
	return f.update(employeeID, func(e *Employee) { e.BankCode = info.BankCode })
}

func (f *fakeStore) BankExists(_ context.Context, code string) (bool, error) {
	return f.banks[code], nil
}

func (f *fakeStore) MarkKYCSubmitted(_ context.Context, employeeID, documentKey string) (Employee, error) {
	f.mu.Lock()
	f.documents[employeeID] = documentKey
	f.mu.Unlock()
	return f.update(employeeID, func(e *Employee) {
		submitted := time.Date(2023, 6, 2, 9, 0, 0, 0, time.UTC)
		e.KYCSubmittedAt = &submitted
		e.MustUploadCedula = false
	})
}

func (f *fakeStore) KYCDocumentKey(_ context.Context, employeeID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.documents[employeeID]
	if !ok {
		return "", ErrNoDocument
	}
	return key, nil
}

func (f *fakeStore) CompanyUserIDs(_ context.Context, companyID string) ([]string, error) {
	return f.companyUser[companyID], nil
}

type sentNotification struct {
	userID string
	ntype  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) Create(_ context.Context, userID, ntype, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID: userID, ntype: ntype})
	return nil
}

type fakePublisher struct {
	events []Event
}

func (p *fakePublisher) Publish(topic string, event Event) {
	if topic != event.Employee.CompanyID {
		panic("event published on another company's topic")
	}
	p.events = append(p.events, event)
}

type fixture struct {
	svc       *Service
	store     *fakeStore
	objects   *storage.Local
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	sealer, err := crypto.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	objects, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	store := newFakeStore()
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	svc := NewService(store, sealer, objects, notifier, publisher, 1024)
	svc.tempPassword = func() (string, error) { return "Temporal123", nil }
	return fixture{svc: svc, store: store, objects: objects, notifier: notifier, publisher: publisher}
}

func sampleEmployee() NewEmployee {
	return NewEmployee{
		FirstName:     " Ana ",
		LastName:      "Pérez",
		Email:         "Ana@Example.com",
		Cedula:        "v12345678",
		Phone:         "0414-123-4567",
		MonthlySalary: decimal.RequireFromString("2200.004"),
	}
}

func TestProvisionForcesPasswordChange(t *testing.T) {
	f := newFixture(t)

	emp, password, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)
	assert.Equal(t, "Temporal123", password)
	assert.Equal(t, "Ana", emp.FirstName)
	assert.Equal(t, "ana@example.com", emp.Email)
	assert.Equal(t, "V-12345678", emp.Cedula)
	assert.Equal(t, "04141234567", emp.Phone)
	assert.Equal(t, "2200.00", emp.MonthlySalary.StringFixed(2))
	assert.False(t, emp.SelfRegistered)

	account := f.store.accounts[emp.ID]
	assert.True(t, account.MustChangePassword)
	require.NoError(t, auth.CheckPassword(account.PasswordHash, "Temporal123"))

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, EventInserted, f.publisher.events[0].Kind)
}

func TestProvisionRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	bad := sampleEmployee()
	bad.Cedula = "12"
	_, _, err := f.svc.Provision(context.Background(), "co-1", bad)
	require.ErrorIs(t, err, ErrInvalidCedula)

	bad = sampleEmployee()
	bad.MonthlySalary = decimal.RequireFromString("-1")
	_, _, err = f.svc.Provision(context.Background(), "co-1", bad)
	require.ErrorIs(t, err, ErrNegativeSalary)

	_, _, err = f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)
	_, _, err = f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestSelfRegisterKeepsChosenPassword(t *testing.T) {
	f := newFixture(t)

	emp, err := f.svc.SelfRegister(context.Background(), Registration{
		CompanyRIF:  "J-12345678-9",
		Password:    "MiClave2023",
		NewEmployee: sampleEmployee(),
	})
	require.NoError(t, err)
	assert.Equal(t, "co-1", emp.CompanyID)
	assert.True(t, emp.SelfRegistered)

	account := f.store.accounts[emp.ID]
	assert.False(t, account.MustChangePassword)
	assert.True(t, account.SelfRegistered)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sentNotification{userID: "company-user-1", ntype: notifications.TypeEmployeeRegistered}, f.notifier.sent[0])
}

func TestSelfRegisterErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SelfRegister(context.Background(), Registration{CompanyRIF: "J-00000000-0", Password: "MiClave2023", NewEmployee: sampleEmployee()})
	require.ErrorIs(t, err, ErrCompanyNotFound)

	_, err = f.svc.SelfRegister(context.Background(), Registration{CompanyRIF: "J-12345678-9", Password: "short", NewEmployee: sampleEmployee()})
	require.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestApprovalScopedToCompany(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)

	_, err = f.svc.SetApproved(context.Background(), "co-2", emp.ID, true)
	require.ErrorIs(t, err, ErrNotFound)

	approved, err := f.svc.SetApproved(context.Background(), "co-1", emp.ID, true)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	assert.True(t, approved.IsVerified)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sentNotification{userID: emp.UserID, ntype: notifications.TypeEmployeeApproved}, f.notifier.sent[0])

	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, EventUpdated, last.Kind)
	assert.True(t, last.Employee.IsApproved)
}

func TestSetActiveAndProfile(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)

	inactive, err := f.svc.SetActive(context.Background(), "co-1", emp.ID, false)
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)

	phone := "+58 424 765 4321"
	salary := decimal.RequireFromString("3000.456")
	updated, err := f.svc.UpdateProfile(context.Background(), "co-1", emp.ID, ProfileUpdate{Phone: &phone, MonthlySalary: &salary})
	require.NoError(t, err)
	assert.Equal(t, "04247654321", updated.Phone)
	assert.Equal(t, "3000.46", updated.MonthlySalary.StringFixed(2))

	negative := decimal.RequireFromString("-5")
	_, err = f.svc.UpdateProfile(context.Background(), "co-1", emp.ID, ProfileUpdate{MonthlySalary: &negative})
	require.ErrorIs(t, err, ErrNegativeSalary)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)

	f.store.withAdvance[emp.ID] = true
	require.ErrorIs(t, f.svc.Remove(context.Background(), "co-1", emp.ID), ErrHasAdvances)

	f.store.withAdvance[emp.ID] = false
	require.NoError(t, f.svc.Remove(context.Background(), "co-1", emp.ID))
	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, EventDeleted, last.Kind)
	assert.Equal(t, emp.ID, last.Employee.ID)
}

func TestRemoveDeletesKYCDocument(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)
	_, err = f.svc.SubmitKYC(context.Background(), emp.UserID, pngHeader)
	require.NoError(t, err)
	key := f.store.documents[emp.ID]
	require.NotEmpty(t, key)

	require.NoError(t, f.svc.Remove(context.Background(), "co-1", emp.ID))
	_, err = f.objects.Get(context.Background(), key)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

type recordingObjects struct {
	deleted   []string
	deleteErr error
}

func (o *recordingObjects) Put(context.Context, string, string, []byte) (string, error) {
	return "kyc/doc.png", nil
}

func (o *recordingObjects) Get(context.Context, string) ([]byte, error) {
	return pngHeader, nil
}

func (o *recordingObjects) Delete(_ context.Context, key string) error {
	o.deleted = append(o.deleted, key)
	return o.deleteErr
}

func TestRemoveDocumentCleanup(t *testing.T) {
	tests := []struct {
		name      string
		submitKYC bool
		deleteErr error
		want      []string
	}{
		{name: "no document", want: nil},
		{name: "document deleted", submitKYC: true, want: []string{"kyc/doc.png"}},
		{name: "delete failure still removes", submitKYC: true, deleteErr: errors.New("disk busy"), want: []string{"kyc/doc.png"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			objects := &recordingObjects{deleteErr: tc.deleteErr}
			f.svc.objects = objects
			emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
			require.NoError(t, err)
			if tc.submitKYC {
				_, err = f.svc.SubmitKYC(context.Background(), emp.UserID, pngHeader)
				require.NoError(t, err)
			}

			require.NoError(t, f.svc.Remove(context.Background(), "co-1", emp.ID))
			assert.Equal(t, tc.want, objects.deleted)
			_, err = f.svc.Get(context.Background(), "co-1", emp.ID)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRemoveKeepsDocumentWhenEmployeeHasAdvances(t *testing.T) {
	f := newFixture(t)
	objects := &recordingObjects{}
	f.svc.objects = objects
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)
	_, err = f.svc.SubmitKYC(context.Background(), emp.UserID, pngHeader)
	require.NoError(t, err)

	f.store.withAdvance[emp.ID] = true
	require.ErrorIs(t, f.svc.Remove(context.Background(), "co-1", emp.ID), ErrHasAdvances)
	assert.Empty(t, objects.deleted)
}

func TestPaymentInfoIsSealedAtRest(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)

	_, err = f.svc.UpdatePaymentInfo(context.Background(), emp.UserID, PaymentInfo{
		BankCode:        "0102",
		BankAccount:     "0102-0000-12-3456789012",
		PagoMovilPhone:  "04141234567",
		PagoMovilCedula: "V12345678",
	})
	require.NoError(t, err)

	stored := f.store.payment[emp.ID]
	assert.NotContains(t, string(stored.BankAccount), "01020000123456789012")
	assert.NotContains(t, string(stored.PagoMovilPhone), "04141234567")

	info, err := f.svc.PaymentInfo(context.Background(), emp.UserID)
	require.NoError(t, err)
	assert.Equal(t, PaymentInfo{
		BankCode:        "0102",
		BankAccount:     "01020000123456789012",
		PagoMovilPhone:  "04141234567",
		PagoMovilCedula: "V-12345678",
	}, info)
}

func TestPaymentInfoValidation(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)

	tests := []struct {
		name string
		info PaymentInfo
		want error
	}{
		{name: "unknown bank", info: PaymentInfo{BankCode: "9999", BankAccount: "99990000123456789012", PagoMovilPhone: "04141234567", PagoMovilCedula: "V-1234567"}, want: ErrUnknownBank},
		{name: "account from another bank", info: PaymentInfo{BankCode: "0102", BankAccount: "01340000123456789012", PagoMovilPhone: "04141234567", PagoMovilCedula: "V-1234567"}, want: ErrInvalidAccount},
		{name: "landline", info: PaymentInfo{BankCode: "0102", BankAccount: "01020000123456789012", PagoMovilPhone: "02121234567", PagoMovilCedula: "V-1234567"}, want: ErrInvalidPhone},
		{name: "bad cedula", info: PaymentInfo{BankCode: "0102", BankAccount: "01020000123456789012", PagoMovilPhone: "04141234567", PagoMovilCedula: "X"}, want: ErrInvalidCedula},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.UpdatePaymentInfo(context.Background(), emp.UserID, tc.info)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSubmitKYCStoresDocument(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)

	updated, err := f.svc.SubmitKYC(context.Background(), emp.UserID, pngHeader)
	require.NoError(t, err)
	assert.False(t, updated.MustUploadCedula)
	require.NotNil(t, updated.KYCSubmittedAt)

	doc, err := f.svc.KYCDocument(context.Background(), "co-1", emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", doc.ContentType)
	assert.Equal(t, pngHeader, doc.Body)

	_, err = f.svc.KYCDocument(context.Background(), "co-2", emp.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notifications.TypeKYCSubmitted, f.notifier.sent[0].ntype)
}

func TestSubmitKYCRejectsBadDocuments(t *testing.T) {
	f := newFixture(t)
	emp, _, err := f.svc.Provision(context.Background(), "co-1", sampleEmployee())
	require.NoError(t, err)

	tests := []struct {
		name    string
		content []byte
		want    error
	}{
		{name: "empty", content: nil, want: ErrNoDocument},
		{name: "too large", content: make([]byte, 2048), want: ErrDocumentTooLarge},
		{name: "plain text", content: []byte("hello, this is not an id"), want: ErrUnsupportedDocument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SubmitKYC(context.Background(), emp.UserID, tc.content)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err = f.svc.KYCDocument(context.Background(), "co-1", emp.ID)
	require.True(t, errors.Is(err, ErrNoDocument))
}

func TestGenerateTempPasswordPassesPolicy(t *testing.T) {
	for i := 0; i < 20; i++ {
		password, err := generateTempPassword()
		require.NoError(t, err)
		assert.Len(t, password, 12)
		require.NoError(t, auth.ValidatePassword(password))
	}
}
