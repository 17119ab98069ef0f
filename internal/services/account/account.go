package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"turnos/internal/apperr"
	"turnos/internal/auth"
	"turnos/internal/models"
	"turnos/internal/util"
)

var messages = util.Messages{
	"username.required": "Usuario, email y contraseña son requeridos",
	"email.required":    "Usuario, email y contraseña son requeridos",
	"password.required": "Usuario, email y contraseña son requeridos",
	"username.min":      "El usuario debe tener al menos 4 caracteres",
	"password.min":      "La contraseña debe tener al menos 6 caracteres",
	"password.max":      "La contraseña es demasiado larga",
	"email.email":       "El correo electrónico no es válido",
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=4,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type CreateInput struct {
	Username string `json:"username" validate:"required,min=4,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role"`
}

type Service struct {
	db     *gorm.DB
	signer *auth.Signer
}

func NewService(db *gorm.DB, signer *auth.Signer) *Service {
	return &Service{db: db, signer: signer}
}

func invalidRole() error {
	return apperr.Invalid(apperr.CodeInvalidRole, "Rol inválido")
}

// Register creates a regular account from the public sign-up form.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.Account, error) {
	return s.Create(ctx, CreateInput{Username: in.Username, Email: in.Email, Password: in.Password, Role: models.RoleUser})
}

func (s *Service) Create(ctx context.Context, in CreateInput) (models.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Password = strings.TrimSpace(in.Password)
	in.Role = strings.TrimSpace(in.Role)
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if err := util.ValidateStruct(in, messages); err != nil {
		return models.Account{}, err
	}
	if in.Role != models.RoleUser && in.Role != models.RoleAdmin {
		return models.Account{}, invalidRole()
	}

	var a models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Account{}).Where("username = ?", in.Username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Duplicate(apperr.CodeDuplicateAccount, "El usuario ya existe")
		}
		if err := tx.Model(&models.Account{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Duplicate(apperr.CodeDuplicateAccount, "El correo electrónico ya está registrado")
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return err
		}
		a = models.Account{Username: in.Username, Email: in.Email, PasswordHash: hash, Role: in.Role}
		return tx.Create(&a).Error
	})
	return a, err
}

func (s *Service) List(ctx context.Context) ([]models.Account, error) {
	out := []models.Account{}
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint) (models.Account, error) {
	return get(s.db.WithContext(ctx), id)
}

func get(db *gorm.DB, id uint) (models.Account, error) {
	var a models.Account
	err := db.Take(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a, apperr.Absent(apperr.CodeAccountNotFound, "Usuario no encontrado")
	}
	return a, err
}

// revokeAll ends every live session of an account so stale role claims stop
// working.
func revokeAll(tx *gorm.DB, accountID uint) error {
	return tx.Model(&models.Session{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Update("revoked_at", time.Now()).Error
}

// Delete removes account id. An actor can never delete their own account.
func (s *Service) Delete(ctx context.Context, actor, id uint) error {
	if actor == id {
		return apperr.Invalid(apperr.CodeSelfModification, "No puedes eliminar tu propio usuario")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := get(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Ticket{}).Where("account_id = ?", id).Update("account_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Account{}, id).Error
	})
}

func (s *Service) SetRole(ctx context.Context, actor, id uint, role string) (models.Account, error) {
	role = strings.TrimSpace(role)
	if role != models.RoleUser && role != models.RoleAdmin {
		return models.Account{}, invalidRole()
	}
	if actor == id {
		return models.Account{}, apperr.Invalid(apperr.CodeSelfModification, "No puedes cambiar tu propio rol")
	}
	var a models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = get(tx, id); err != nil {
			return err
		}
		if a.Role == role {
			return nil
		}
		a.Role = role
		if err := tx.Model(&a).Update("role", role).Error; err != nil {
			return err
		}
		return revokeAll(tx, a.ID)
	})
	return a, err
}

type Token struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   models.Account `json:"user"`
}

func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	fail := apperr.New(apperr.AuthenticationRequired, apperr.CodeInvalidCredentials, "Usuario o contraseña incorrectos")
	var out Token
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Account
		if err := tx.Where("username = ?", strings.TrimSpace(username)).Take(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fail
			}
			return err
		}
		if !auth.PasswordMatches(a.PasswordHash, strings.TrimSpace(password)) {
			return fail
		}
		jti := uuid.NewString()
		tok, exp, err := s.signer.Sign(auth.Claims{AccountID: a.ID, Username: a.Username, Role: a.Role, JWTID: jti})
		if err != nil {
			return err
		}
		if err := tx.Create(&models.Session{JTI: jti, AccountID: a.ID, ExpiresAt: exp}).Error; err != nil {
			return err
		}
		now := time.Now()
		a.LastLogin = &now
		if err := tx.Model(&a).Update("last_login", now).Error; err != nil {
			return err
		}
		out = Token{Token: tok, ExpiresAt: exp, Account: a}
		return nil
	})
	return out, err
}

// Logout revokes the session identified by jti.
func (s *Service) Logout(ctx context.Context, jti string) error {
	return s.db.WithContext(ctx).Model(&models.Session{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", time.Now()).Error
}
