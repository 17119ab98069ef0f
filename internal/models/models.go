package models

import "time"

const (
	StatusPending  = "Pendiente"
	StatusResolved = "Resuelto"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Level struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	NameKey string `gorm:"size:50;not null;default:''" json:"-"`
}

type Municipality struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"size:60;uniqueIndex;not null" json:"name"`
	NameKey string `gorm:"size:60;not null;default:''" json:"-"`
}

type Subject struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"size:60;uniqueIndex;not null" json:"name"`
	NameKey string `gorm:"size:60;not null;default:''" json:"-"`
}

// CatalogEntry is the shared row shape of levels, municipalities and subjects.
// Queries pick the table explicitly with db.Table.
type CatalogEntry struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	NameKey string `json:"-"`
}

type Person struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName     string    `gorm:"size:120;not null" json:"nombre_completo"`
	NationalID   string    `gorm:"size:18;uniqueIndex;not null" json:"curp"`
	GivenName    string    `gorm:"size:60" json:"nombre"`
	PaternalName string    `gorm:"size:60" json:"paterno"`
	MaternalName string    `gorm:"size:60" json:"materno"`
	Phone        string    `gorm:"size:20" json:"telefono"`
	Mobile       string    `gorm:"size:20" json:"celular"`
	Email        string    `gorm:"size:120" json:"correo"`
	SearchKey    string    `gorm:"size:120;index;not null;default:''" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Ticket struct {
	ID             uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	SequenceNumber int           `gorm:"not null;uniqueIndex:idx_tickets_municipality_sequence,priority:2" json:"numero_turno"`
	PersonID       uint          `gorm:"not null;index" json:"person_id"`
	LevelID        uint          `gorm:"not null;index" json:"level_id"`
	MunicipalityID uint          `gorm:"not null;uniqueIndex:idx_tickets_municipality_sequence,priority:1" json:"municipality_id"`
	SubjectID      uint          `gorm:"not null;index" json:"subject_id"`
	AccountID      *uint         `gorm:"index" json:"account_id,omitempty"`
	Status         string        `gorm:"size:20;not null;default:Pendiente" json:"estatus"`
	CreatedAt      time.Time     `gorm:"index" json:"fecha_registro"`
	Person         *Person       `gorm:"foreignKey:PersonID;constraint:OnDelete:RESTRICT" json:"-"`
	Level          *Level        `gorm:"foreignKey:LevelID;constraint:OnDelete:RESTRICT" json:"-"`
	Municipality   *Municipality `gorm:"foreignKey:MunicipalityID;constraint:OnDelete:RESTRICT" json:"-"`
	Subject        *Subject      `gorm:"foreignKey:SubjectID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TicketCounter is the per-municipality row that number allocation locks.
// LastNumber mirrors the last number handed out or reserved.
type TicketCounter struct {
	MunicipalityID uint `gorm:"primaryKey;autoIncrement:false"`
	LastNumber     int  `gorm:"not null;default:0"`
}

type Account struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         string     `gorm:"size:10;not null;default:user" json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID *uint     `gorm:"index" json:"account_id,omitempty"`
	Action    string    `gorm:"size:64;not null" json:"action"`
	Metadata  JSONB     `json:"metadata"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	AccountID uint       `gorm:"index;not null" json:"account_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&Level{}, &Municipality{}, &Subject{}, &Person{}, &Account{},
		&Ticket{}, &TicketCounter{}, &Session{}, &AuditLog{},
	}
}
