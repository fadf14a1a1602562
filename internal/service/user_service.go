package service

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/artifact"
	"github.com/iliyamo/albaranes/internal/logs"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/queue"
	"github.com/iliyamo/albaranes/internal/repository"
	"github.com/iliyamo/albaranes/internal/utils"
)

// MaxAttempts is how many wrong verification codes an account tolerates.
const MaxAttempts = 3

// Sender dispatches mail events out of band.
type Sender interface {
	Send(ctx context.Context, ev queue.MailEvent) error
}

// AuthConfig carries the token and code policy.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	ResetCodeTTL   time.Duration
	InviteCodeTTL  time.Duration
	MaxLogoBytes   int64
}

// Session is returned by register, login and refresh.
type Session struct {
	Token        string      `json:"token"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	RefreshToken string      `json:"refreshToken"`
	User         *model.User `json:"user"`
}

// UserService implements account flows.
type UserService struct {
	users  repository.UserStore
	tokens repository.TokenStore
	mail   Sender
	files  artifact.Store
	cfg    AuthConfig

	now     func() time.Time
	newCode func() (string, error)
}

func NewUserService(users repository.UserStore, tokens repository.TokenStore, mail Sender, files artifact.Store, cfg AuthConfig) *UserService {
	if cfg.ResetCodeTTL <= 0 {
		cfg.ResetCodeTTL = 10 * time.Minute
	}
	if cfg.InviteCodeTTL <= 0 {
		cfg.InviteCodeTTL = 72 * time.Hour
	}
	if cfg.MaxLogoBytes <= 0 {
		cfg.MaxLogoBytes = 1 << 20
	}
	return &UserService{
		users: users, tokens: tokens, mail: mail, files: files, cfg: cfg,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: utils.NewCode,
	}
}

// Authenticate resolves the principal behind an access token. Pending
// accounts pass only when allowPending is set (email verification itself).
func (s *UserService) Authenticate(ctx context.Context, raw string, allowPending bool) (*model.User, error) {
	if raw == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "missing bearer token")
	}
	claims, err := utils.ParseAccessToken(s.cfg.JWTSecret, raw)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidCredential, "invalid or expired token")
	}
	id, _ := claims.UserID()
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindInvalidCredential, "invalid or expired token")
		}
		return nil, fromStore(err, "user")
	}
	switch {
	case u.Status == model.StatusDeleted:
		return nil, apperr.Forbidden("account deleted")
	case u.Status != model.StatusVerified && !allowPending:
		return nil, apperr.Forbidden("email not verified")
	}
	return u, nil
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Age      int
}

// Register creates the account, or overwrites one that never got verified.
// created reports whether a new row was inserted.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (sess *Session, created bool, err error) {
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, false, apperr.Internal("hash password", err)
	}
	code, err := s.newCode()
	if err != nil {
		return nil, false, apperr.Internal("generate code", err)
	}
	u := &model.User{
		Email: in.Email, PasswordHash: hash, Status: model.StatusPending, Role: model.RoleUser,
		Code: code, Attempts: MaxAttempts, Personal: model.PersonalData{Name: in.Name, Age: in.Age},
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return nil, false, apperr.Conflict("email already registered")
			}
			return nil, false, fromStore(err, "user")
		}
		created = true
	case err != nil:
		return nil, false, fromStore(err, "user")
	case existing.Status == model.StatusVerified:
		return nil, false, apperr.Conflict("email already registered")
	default:
		u.ID = existing.ID
		if err := s.users.ResetRegistration(ctx, u); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, false, apperr.Conflict("email already registered")
			}
			return nil, false, fromStore(err, "user")
		}
	}

	s.dispatch(ctx, queue.MailEvent{Kind: queue.MailVerification, To: u.Email, UserID: u.ID, Code: code})

	stored, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, false, fromStore(err, "user")
	}
	sess, err = s.issue(ctx, stored)
	return sess, created, err
}

// VerifyEmail checks code against the principal's pending verification.
func (s *UserService) VerifyEmail(ctx context.Context, principal *model.User, code string) (*model.User, error) {
	if principal.Status == model.StatusVerified {
		return principal, nil
	}
	if principal.Attempts <= 0 {
		return nil, apperr.New(apperr.KindAttemptsExhausted, "no verification attempts left, register again to get a new code")
	}
	if code != principal.Code {
		left, err := s.users.DecrementAttempts(ctx, principal.ID)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, apperr.New(apperr.KindAttemptsExhausted, "no verification attempts left, register again to get a new code")
			}
			return nil, fromStore(err, "user")
		}
		return nil, apperr.New(apperr.KindInvalidCode, "invalid verification code").WithDetail("attempts", left)
	}
	if err := s.users.MarkVerified(ctx, principal.ID); err != nil {
		return nil, fromStore(err, "user")
	}
	return s.profile(ctx, principal.ID)
}

// Login checks credentials. Every failure looks the same to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	bad := apperr.New(apperr.KindInvalidCredential, "invalid email or password")
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bad
		}
		return nil, fromStore(err, "user")
	}
	if u.Status == model.StatusDeleted || u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, bad
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the old one is revoked, a new pair issued.
func (s *UserService) Refresh(ctx context.Context, raw string) (*Session, error) {
	bad := apperr.New(apperr.KindInvalidCredential, "invalid refresh token")
	hash := utils.HashRefreshRaw(raw)
	uid, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bad
		}
		return nil, fromStore(err, "refresh token")
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bad
		}
		return nil, fromStore(err, "refresh token")
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil || u.Status == model.StatusDeleted {
		return nil, bad
	}
	return s.issue(ctx, u)
}

// Logout revokes a refresh token; unknown tokens are ignored.
func (s *UserService) Logout(ctx context.Context, raw string) error {
	err := s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fromStore(err, "refresh token")
	}
	return nil
}

// ForgotPassword issues a reset code. Unknown emails succeed silently.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fromStore(err, "user")
	}
	if u.Status == model.StatusDeleted {
		return nil
	}
	code, err := s.newCode()
	if err != nil {
		return apperr.Internal("generate code", err)
	}
	if err := s.users.SetResetCode(ctx, u.ID, code, s.now().Add(s.cfg.ResetCodeTTL)); err != nil {
		return fromStore(err, "user")
	}
	s.dispatch(ctx, queue.MailEvent{Kind: queue.MailPasswordReset, To: u.Email, UserID: u.ID, Code: code})
	return nil
}

// ResetPassword swaps the password when code is the live reset code.
func (s *UserService) ResetPassword(ctx context.Context, email, code, password string) error {
	invalid := apperr.New(apperr.KindInvalidCode, "invalid or expired reset code")
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid
		}
		return fromStore(err, "user")
	}
	now := s.now()
	if u.ResetCode == "" || u.ResetCode != code || u.ResetCodeExpiration == nil || !u.ResetCodeExpiration.After(now) {
		return invalid
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := s.users.ResetPassword(ctx, u.ID, code, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid
		}
		return fromStore(err, "user")
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		logs.Logger.WithError(err).WithField("user_id", u.ID).Warn("revoke refresh tokens after reset")
	}
	return nil
}

// Invite creates a pending guest inside the inviter's company. The code is
// both the verification code and a reset code, so the guest first sets a
// password through reset-password and then verifies.
func (s *UserService) Invite(ctx context.Context, inviter *model.User, email string) (*model.User, error) {
	if inviter.CompanyCIF() == "" {
		return nil, apperr.New(apperr.KindPreconditionFailed, "configure your company before inviting colleagues")
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fromStore(err, "user")
	}
	code, err := s.newCode()
	if err != nil {
		return nil, apperr.Internal("generate code", err)
	}
	exp := s.now().Add(s.cfg.InviteCodeTTL)
	company := *inviter.Company
	guest := &model.User{
		Email: email, Status: model.StatusPending, Role: model.RoleGuest, Code: code,
		Attempts: MaxAttempts, ResetCode: code, ResetCodeExpiration: &exp, Company: &company,
	}
	if err := s.users.Create(ctx, guest); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fromStore(err, "user")
	}
	s.dispatch(ctx, queue.MailEvent{
		Kind: queue.MailInvitation, To: guest.Email, UserID: guest.ID, Code: code,
		InvitedBy: inviter.Email, Company: company.Name,
	})
	return s.profile(ctx, guest.ID)
}

// DeleteAccount soft-deletes (status=deleted) or removes the account.
func (s *UserService) DeleteAccount(ctx context.Context, principal *model.User, soft bool) error {
	if soft {
		if err := s.users.SoftDelete(ctx, principal.ID); err != nil {
			return fromStore(err, "user")
		}
		if err := s.tokens.RevokeAllForUser(ctx, principal.ID); err != nil {
			return fromStore(err, "refresh token")
		}
		return nil
	}
	return fromStore(s.users.HardDelete(ctx, principal.ID), "user")
}

func (s *UserService) Profile(ctx context.Context, principal *model.User) (*model.User, error) {
	return s.profile(ctx, principal.ID)
}

type PersonalInput struct {
	Name     string
	Lastname string
	NIF      string
}

func (s *UserService) UpdatePersonalData(ctx context.Context, principal *model.User, in PersonalInput) (*model.User, error) {
	u, err := s.profile(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	u.Personal.Name, u.Personal.Lastname, u.Personal.NIF = in.Name, in.Lastname, in.NIF
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, fromStore(err, "user")
	}
	return s.profile(ctx, u.ID)
}

type CompanyInput struct {
	Name         string
	CIF          string
	Address      string
	IsFreelancer bool
}

// UpdateCompanyData sets the company affiliation. Freelancers act as their
// own company, named after themselves.
func (s *UserService) UpdateCompanyData(ctx context.Context, principal *model.User, in CompanyInput) (*model.User, error) {
	u, err := s.profile(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	name := in.Name
	if in.IsFreelancer {
		name = u.DisplayName()
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("company name is required")
	}
	u.Company = &model.Company{Name: name, CIF: in.CIF, Address: in.Address}
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, fromStore(err, "user")
	}
	return s.profile(ctx, u.ID)
}

var logoExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// UploadLogo stores an image as logos/{userID}{ext} and records its object
// name along with the locator returned by the upload.
func (s *UserService) UploadLogo(ctx context.Context, principal *model.User, filename string, data []byte) (*model.User, error) {
	if int64(len(data)) > s.cfg.MaxLogoBytes {
		return nil, apperr.Validation("logo exceeds the 1MB limit")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !logoExts[ext] {
		return nil, apperr.Validation("logo must be a .png, .jpg or .jpeg file")
	}
	if mt := mimetype.Detect(data); !mt.Is("image/png") && !mt.Is("image/jpeg") {
		return nil, apperr.Validation("logo content is not a PNG or JPEG image")
	}
	u, err := s.profile(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	name := "logos/" + strconv.FormatUint(u.ID, 10) + ext
	ref, err := s.files.Upload(ctx, data, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindArtifactGeneration, "logo upload failed", err)
	}
	u.LogoKey, u.LogoURL = name, ref.Locator
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, fromStore(err, "user")
	}
	return s.profile(ctx, u.ID)
}

func (s *UserService) profile(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "user")
	}
	s.signLogo(ctx, u)
	return u, nil
}

// signLogo swaps the stored logo locator for a fresh one; presigned links
// expire. The stored locator is kept when the store cannot answer.
func (s *UserService) signLogo(ctx context.Context, u *model.User) {
	if u.LogoKey == "" || s.files == nil {
		return
	}
	ref, err := s.files.Fetch(ctx, u.LogoKey)
	if err != nil {
		logs.Logger.WithError(err).WithFields(logrus.Fields{
			"user_id": u.ID, "key": u.LogoKey,
		}).Warn("logo locator refresh failed")
		return
	}
	u.LogoURL = ref.Locator
}

func (s *UserService) issue(ctx context.Context, u *model.User) (*Session, error) {
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, apperr.Internal("sign access token", err)
	}
	rt, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, apperr.Internal("generate refresh token", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return nil, fromStore(err, "refresh token")
	}
	s.signLogo(ctx, u)
	return &Session{Token: at.Token, ExpiresAt: at.Exp, RefreshToken: rt.Raw, User: u}, nil
}

// dispatch hands ev to the mail sender. Failures are logged, never returned.
func (s *UserService) dispatch(ctx context.Context, ev queue.MailEvent) {
	if s.mail == nil {
		return
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	if err := s.mail.Send(ctx, ev); err != nil {
		logs.Logger.WithError(err).WithFields(logrus.Fields{
			"kind": ev.Kind, "user_id": ev.UserID,
		}).Warn("mail dispatch failed")
	}
}
