package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/middleware"
	"github.com/iliyamo/albaranes/internal/service"
	"github.com/iliyamo/albaranes/internal/utils"
)

// UserHandler serves the account endpoints.
type UserHandler struct {
	Users        *service.UserService
	MaxLogoBytes int64
}

func NewUserHandler(users *service.UserService, maxLogoBytes int64) *UserHandler {
	return &UserHandler{Users: users, MaxLogoBytes: maxLogoBytes}
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeReq struct {
	Code string `json:"code"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type personalReq struct {
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	NIF      string `json:"nif"`
}

type companyReq struct {
	Name         string `json:"name"`
	CIF          string `json:"cif"`
	Address      string `json:"address"`
	IsFreelancer bool   `json:"isFreelancer"`
}

type emailReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
	Password    string `json:"password"`
}

func sessionBody(s *service.Session) echo.Map {
	return echo.Map{
		"token": s.Token, "expiresAt": s.ExpiresAt, "refreshToken": s.RefreshToken, "user": s.User,
	}
}

func checkPassword(p *problems, field, pw string) {
	if n := len([]rune(pw)); !utils.PasswordLongEnough(pw) || n > 16 {
		p.addf("%s must be between %d and 16 characters", field, utils.MinPasswordLen)
	}
}

func checkCode(p *problems, code string) {
	if len(code) != utils.CodeDigits || !numeric(code) {
		p.addf("code must be exactly %d digits", utils.CodeDigits)
	}
}

// Register answers 201 for a new account and 200 when a pending
// registration was overwritten.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = normEmail(req.Email)
	var p problems
	p.email("email", req.Email, false)
	checkPassword(&p, "password", req.Password)
	p.required("name", req.Name)
	if len([]rune(req.Name)) > 99 {
		p.addf("name must be at most 99 characters")
	}
	if req.Age < 0 {
		p.addf("age must be a positive number")
	}
	if err := p.err(); err != nil {
		return err
	}

	ctx, cancel := opContext(c)
	defer cancel()
	sess, created, err := h.Users.Register(ctx, service.RegisterInput{
		Email: req.Email, Password: req.Password, Name: strings.TrimSpace(req.Name), Age: req.Age,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return ok(c, status, sessionBody(sess))
}

func (h *UserHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = normEmail(req.Email)
	var p problems
	p.email("email", req.Email, false)
	p.required("password", req.Password)
	if err := p.err(); err != nil {
		return err
	}

	ctx, cancel := opContext(c)
	defer cancel()
	sess, err := h.Users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, sessionBody(sess))
}

// Validate checks the email verification code of the principal.
func (h *UserHandler) Validate(c echo.Context) error {
	var req codeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	var p problems
	checkCode(&p, req.Code)
	if err := p.err(); err != nil {
		return err
	}

	ctx, cancel := opContext(c)
	defer cancel()
	u, err := h.Users.VerifyEmail(ctx, middleware.Principal(c), req.Code)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "email verified", "user": u})
}

func (h *UserHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return apperr.Validation("refreshToken is required")
	}
	ctx, cancel := opContext(c)
	defer cancel()
	sess, err := h.Users.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, sessionBody(sess))
}

func (h *UserHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return apperr.Validation("refreshToken is required")
	}
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Users.Logout(ctx, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) Personal(c echo.Context) error {
	var req personalReq
	if err := bind(c, &req); err != nil {
		return err
	}
	var p problems
	p.required("name", req.Name)
	p.required("lastname", req.Lastname)
	if len([]rune(strings.TrimSpace(req.NIF))) != 9 {
		p.addf("nif must be 9 characters")
	}
	if err := p.err(); err != nil {
		return err
	}

	ctx, cancel := opContext(c)
	defer cancel()
	u, err := h.Users.UpdatePersonalData(ctx, middleware.Principal(c), service.PersonalInput{
		Name: strings.TrimSpace(req.Name), Lastname: strings.TrimSpace(req.Lastname), NIF: strings.TrimSpace(req.NIF),
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"user": u})
}

// Company sets the company data. Freelancers may omit the name.
func (h *UserHandler) Company(c echo.Context) error {
	var req companyReq
	if err := bind(c, &req); err != nil {
		return err
	}
	var p problems
	if !req.IsFreelancer {
		p.required("name", req.Name)
	}
	p.required("cif", req.CIF)
	p.required("address", req.Address)
	if err := p.err(); err != nil {
		return err
	}

	ctx, cancel := opContext(c)
	defer cancel()
	u, err := h.Users.UpdateCompanyData(ctx, middleware.Principal(c), service.CompanyInput{
		Name: strings.TrimSpace(req.Name), CIF: strings.TrimSpace(req.CIF),
		Address: strings.TrimSpace(req.Address), IsFreelancer: req.IsFreelancer,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"user": u})
}

// UploadLogo reads the multipart field "logo".
func (h *UserHandler) UploadLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return apperr.Validation("no file was sent in field logo")
	}
	if fh.Size > h.MaxLogoBytes {
		return apperr.Validation("logo exceeds the " + strconv.FormatInt(h.MaxLogoBytes>>10, 10) + "KB limit")
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Validation("could not read the uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.MaxLogoBytes+1))
	if err != nil {
		return apperr.Validation("could not read the uploaded file")
	}

	ctx, cancel := opContext(c)
	defer cancel()
	u, err := h.Users.UploadLogo(ctx, middleware.Principal(c), fh.Filename, data)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"logoUrl": u.LogoURL})
}

func (h *UserHandler) Profile(c echo.Context) error {
	ctx, cancel := opContext(c)
	defer cancel()
	u, err := h.Users.Profile(ctx, middleware.Principal(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"user": u})
}

// ForgotPassword always answers 200 so callers cannot probe for accounts.
func (h *UserHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = normEmail(req.Email)
	var p problems
	p.email("email", req.Email, false)
	if err := p.err(); err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Users.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "if the account exists a reset code was sent"})
}

func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = normEmail(req.Email)
	if req.NewPassword == "" {
		req.NewPassword = req.Password
	}
	var p problems
	p.email("email", req.Email, false)
	checkCode(&p, req.Code)
	checkPassword(&p, "newPassword", req.NewPassword)
	if err := p.err(); err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Users.ResetPassword(ctx, req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "password updated"})
}

func (h *UserHandler) Invite(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = normEmail(req.Email)
	var p problems
	p.email("email", req.Email, false)
	if err := p.err(); err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	guest, err := h.Users.Invite(ctx, middleware.Principal(c), req.Email)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{"guest": guest})
}

// Delete removes the account; ?soft=true only marks it deleted.
func (h *UserHandler) Delete(c echo.Context) error {
	soft, _ := strconv.ParseBool(c.QueryParam("soft"))
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Users.DeleteAccount(ctx, middleware.Principal(c), soft); err != nil {
		return err
	}
	msg := "account deleted permanently"
	if soft {
		msg = "account marked as deleted"
	}
	return ok(c, http.StatusOK, echo.Map{"message": msg})
}
