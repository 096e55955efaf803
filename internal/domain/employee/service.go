package employee

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/company"
	"wageadvance/internal/domain/notifications"
)

// Sealer encrypts payment data at rest.
type Sealer interface {
	SealString(value string) ([]byte, error)
	OpenString(sealed []byte) (string, error)
}

type ObjectStore interface {
	Put(ctx context.Context, prefix, ext string, content []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
}

// Publisher fans roster changes out to the company's live dashboards.
type Publisher interface {
	Publish(topic string, event Event)
}

var documentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

type Service struct {
	store        StoreAPI
	sealer       Sealer
	objects      ObjectStore
	notifier     Notifier
	publisher    Publisher
	maxDocument  int64
	tempPassword func() (string, error)
}

func NewService(store StoreAPI, sealer Sealer, objects ObjectStore, notifier Notifier, publisher Publisher, maxDocument int64) *Service {
	return &Service{
		store:        store,
		sealer:       sealer,
		objects:      objects,
		notifier:     notifier,
		publisher:    publisher,
		maxDocument:  maxDocument,
		tempPassword: generateTempPassword,
	}
}

func normalizeNew(emp NewEmployee) (NewEmployee, error) {
	emp.FirstName = strings.TrimSpace(emp.FirstName)
	emp.LastName = strings.TrimSpace(emp.LastName)
	emp.Email = strings.ToLower(strings.TrimSpace(emp.Email))
	cedula, err := NormalizeCedula(emp.Cedula)
	if err != nil {
		return NewEmployee{}, err
	}
	emp.Cedula = cedula
	if strings.TrimSpace(emp.Phone) != "" {
		phone, err := NormalizePhone(emp.Phone)
		if err != nil {
			return NewEmployee{}, err
		}
		emp.Phone = phone
	}
	if emp.MonthlySalary.IsNegative() {
		return NewEmployee{}, ErrNegativeSalary
	}
	emp.MonthlySalary = emp.MonthlySalary.Round(2)
	return emp, nil
}

// Provision creates an employee on behalf of their company. The returned
// temporary password must be changed on first login.
func (s *Service) Provision(ctx context.Context, companyID string, emp NewEmployee) (Employee, string, error) {
	emp.CompanyID = companyID
	emp, err := normalizeNew(emp)
	if err != nil {
		return Employee{}, "", err
	}
	password, err := s.tempPassword()
	if err != nil {
		return Employee{}, "", err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Employee{}, "", err
	}
	created, err := s.store.CreateWithUser(ctx, emp, Account{PasswordHash: hash, MustChangePassword: true})
	if err != nil {
		return Employee{}, "", err
	}
	s.publish(EventInserted, created)
	return created, password, nil
}

// SelfRegister signs an employee up under the company with the given RIF.
// The employee chose their own password so no forced change applies.
func (s *Service) SelfRegister(ctx context.Context, reg Registration) (Employee, error) {
	if err := auth.ValidatePassword(reg.Password); err != nil {
		return Employee{}, err
	}
	rif, err := company.NormalizeRIF(reg.CompanyRIF)
	if err != nil {
		return Employee{}, err
	}
	companyID, err := s.store.CompanyIDByRIF(ctx, rif)
	if err != nil {
		return Employee{}, err
	}
	emp := reg.NewEmployee
	emp.CompanyID = companyID
	emp, err = normalizeNew(emp)
	if err != nil {
		return Employee{}, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return Employee{}, err
	}
	created, err := s.store.CreateWithUser(ctx, emp, Account{PasswordHash: hash, SelfRegistered: true})
	if err != nil {
		return Employee{}, err
	}
	s.publish(EventInserted, created)
	s.notifyCompany(ctx, companyID, notifications.TypeEmployeeRegistered,
		"New employee registration",
		fmt.Sprintf("%s registered and is waiting for approval.", created.FullName()))
	return created, nil
}

func (s *Service) Me(ctx context.Context, userID string) (Employee, error) {
	return s.store.GetByUserID(ctx, userID)
}

// Get returns the employee only when it belongs to companyID.
func (s *Service) Get(ctx context.Context, companyID, employeeID string) (Employee, error) {
	emp, err := s.store.Get(ctx, employeeID)
	if err != nil {
		return Employee{}, err
	}
	if emp.CompanyID != companyID {
		return Employee{}, ErrNotFound
	}
	return emp, nil
}

func (s *Service) List(ctx context.Context, companyID string, filter ListFilter) ([]Employee, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.List(ctx, companyID, filter)
}

// SetApproved approves or revokes an employee. Approval also marks the
// identity document as verified.
func (s *Service) SetApproved(ctx context.Context, companyID, employeeID string, approved bool) (Employee, error) {
	if _, err := s.Get(ctx, companyID, employeeID); err != nil {
		return Employee{}, err
	}
	updated, err := s.store.SetApproved(ctx, employeeID, approved)
	if err != nil {
		return Employee{}, err
	}
	s.publish(EventUpdated, updated)
	if approved && s.notifier != nil {
		if err := s.notifier.Create(ctx, updated.UserID, notifications.TypeEmployeeApproved,
			"Account approved", "Your company approved your account. You can now request advances."); err != nil {
			slog.Warn("employee approval notification failed", "employeeId", employeeID, "err", err)
		}
	}
	return updated, nil
}

func (s *Service) SetActive(ctx context.Context, companyID, employeeID string, active bool) (Employee, error) {
	if _, err := s.Get(ctx, companyID, employeeID); err != nil {
		return Employee{}, err
	}
	updated, err := s.store.SetActive(ctx, employeeID, active)
	if err != nil {
		return Employee{}, err
	}
	s.publish(EventUpdated, updated)
	return updated, nil
}

func (s *Service) UpdateProfile(ctx context.Context, companyID, employeeID string, upd ProfileUpdate) (Employee, error) {
	if _, err := s.Get(ctx, companyID, employeeID); err != nil {
		return Employee{}, err
	}
	if upd.Phone != nil {
		phone, err := NormalizePhone(*upd.Phone)
		if err != nil {
			return Employee{}, err
		}
		upd.Phone = &phone
	}
	if upd.MonthlySalary != nil {
		if upd.MonthlySalary.IsNegative() {
			return Employee{}, ErrNegativeSalary
		}
		salary := upd.MonthlySalary.Round(2)
		upd.MonthlySalary = &salary
	}
	updated, err := s.store.UpdateProfile(ctx, employeeID, upd)
	if err != nil {
		return Employee{}, err
	}
	s.publish(EventUpdated, updated)
	return updated, nil
}

// Remove deletes an employee that never requested an advance, along with the
// stored identity document. A document that fails to delete is logged; the
// employee stays removed.
func (s *Service) Remove(ctx context.Context, companyID, employeeID string) error {
	emp, err := s.Get(ctx, companyID, employeeID)
	if err != nil {
		return err
	}
	documentKey, err := s.store.KYCDocumentKey(ctx, employeeID)
	if err != nil && !errors.Is(err, ErrNoDocument) {
		return err
	}
	if err := s.store.Delete(ctx, employeeID); err != nil {
		return err
	}
	if documentKey != "" {
		if err := s.objects.Delete(ctx, documentKey); err != nil {
			slog.Warn("kyc document delete failed", "employeeId", employeeID, "key", documentKey, "err", err)
		}
	}
	s.publish(EventDeleted, emp)
	return nil
}

func (s *Service) PaymentInfo(ctx context.Context, userID string) (PaymentInfo, error) {
	emp, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return PaymentInfo{}, err
	}
	sealed, err := s.store.PaymentInfo(ctx, emp.ID)
	if err != nil {
		return PaymentInfo{}, err
	}
	account, err := s.sealer.OpenString(sealed.BankAccount)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("open bank account: %w", err)
	}
	phone, err := s.sealer.OpenString(sealed.PagoMovilPhone)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("open pago movil phone: %w", err)
	}
	return PaymentInfo{
		BankCode:        sealed.BankCode,
		BankAccount:     account,
		PagoMovilPhone:  phone,
		PagoMovilCedula: sealed.PagoMovilCedula,
	}, nil
}

// UpdatePaymentInfo validates and stores the employee's payout details with
// the account number and phone encrypted.
func (s *Service) UpdatePaymentInfo(ctx context.Context, userID string, info PaymentInfo) (Employee, error) {
	emp, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return Employee{}, err
	}
	info.BankCode = strings.TrimSpace(info.BankCode)
	exists, err := s.store.BankExists(ctx, info.BankCode)
	if err != nil {
		return Employee{}, err
	}
	if !exists {
		return Employee{}, ErrUnknownBank
	}
	account, err := NormalizeAccount(info.BankCode, info.BankAccount)
	if err != nil {
		return Employee{}, err
	}
	phone, err := NormalizePhone(info.PagoMovilPhone)
	if err != nil {
		return Employee{}, err
	}
	cedula, err := NormalizeCedula(info.PagoMovilCedula)
	if err != nil {
		return Employee{}, err
	}

	sealedAccount, err := s.sealer.SealString(account)
	if err != nil {
		return Employee{}, err
	}
	sealedPhone, err := s.sealer.SealString(phone)
	if err != nil {
		return Employee{}, err
	}
	updated, err := s.store.UpdatePaymentInfo(ctx, emp.ID, SealedPaymentInfo{
		BankCode:        info.BankCode,
		BankAccount:     sealedAccount,
		PagoMovilPhone:  sealedPhone,
		PagoMovilCedula: cedula,
	})
	if err != nil {
		return Employee{}, err
	}
	s.publish(EventUpdated, updated)
	return updated, nil
}

// SubmitKYC stores the identity document and clears the upload requirement.
// The content type is sniffed from the bytes, never taken from the client.
func (s *Service) SubmitKYC(ctx context.Context, userID string, content []byte) (Employee, error) {
	if len(content) == 0 {
		return Employee{}, ErrNoDocument
	}
	if s.maxDocument > 0 && int64(len(content)) > s.maxDocument {
		return Employee{}, ErrDocumentTooLarge
	}
	ext, ok := documentTypes[http.DetectContentType(content)]
	if !ok {
		return Employee{}, ErrUnsupportedDocument
	}
	emp, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return Employee{}, err
	}
	key, err := s.objects.Put(ctx, "kyc/"+emp.CompanyID, ext, content)
	if err != nil {
		return Employee{}, err
	}
	updated, err := s.store.MarkKYCSubmitted(ctx, emp.ID, key)
	if err != nil {
		return Employee{}, err
	}
	s.publish(EventUpdated, updated)
	s.notifyCompany(ctx, updated.CompanyID, notifications.TypeKYCSubmitted,
		"Identity document submitted",
		fmt.Sprintf("%s uploaded their identity document for review.", updated.FullName()))
	return updated, nil
}

// KYCDocument returns the stored identity document of an employee of companyID.
func (s *Service) KYCDocument(ctx context.Context, companyID, employeeID string) (Document, error) {
	if _, err := s.Get(ctx, companyID, employeeID); err != nil {
		return Document{}, err
	}
	key, err := s.store.KYCDocumentKey(ctx, employeeID)
	if err != nil {
		return Document{}, err
	}
	body, err := s.objects.Get(ctx, key)
	if err != nil {
		return Document{}, err
	}
	return Document{ContentType: http.DetectContentType(body), Body: body}, nil
}

func (s *Service) publish(kind EventKind, emp Employee) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(emp.CompanyID, Event{Kind: kind, Employee: emp})
}

func (s *Service) notifyCompany(ctx context.Context, companyID, ntype, title, body string) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.store.CompanyUserIDs(ctx, companyID)
	if err != nil {
		slog.Warn("company users lookup failed", "companyId", companyID, "err", err)
		return
	}
	for _, userID := range userIDs {
		if err := s.notifier.Create(ctx, userID, ntype, title, body); err != nil {
			slog.Warn("company notification failed", "companyId", companyID, "userId", userID, "err", err)
		}
	}
}

const tempPasswordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateTempPassword returns 12 random characters with at least one
// letter and one digit so it passes auth.ValidatePassword.
func generateTempPassword() (string, error) {
	for {
		var b strings.Builder
		for i := 0; i < 12; i++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tempPasswordAlphabet))))
			if err != nil {
				return "", err
			}
			b.WriteByte(tempPasswordAlphabet[n.Int64()])
		}
		password := b.String()
		if auth.ValidatePassword(password) == nil {
			return password, nil
		}
	}
}
