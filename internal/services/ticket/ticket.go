package ticket

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"turnos/internal/apperr"
	"turnos/internal/models"
	"turnos/internal/services/catalog"
	"turnos/internal/services/person"
	"turnos/internal/services/receipt"
	"turnos/internal/util"
)

// Receipts renders and stores a receipt, returning where it can be fetched.
type Receipts interface {
	Generate(v receipt.View, suffix string) (string, error)
}

type Options struct {
	// StrictReferenceUpdates rejects updates naming a catalog entry that does
	// not exist instead of leaving the reference as it was.
	StrictReferenceUpdates bool
}

type Service struct {
	db       *gorm.DB
	receipts Receipts
	opts     Options
}

func NewService(db *gorm.DB, receipts Receipts, opts Options) *Service {
	return &Service{db: db, receipts: receipts, opts: opts}
}

type View struct {
	ID           uint      `json:"id"`
	Number       int       `json:"numero_turno"`
	FullName     string    `json:"nombre_completo"`
	NationalID   string    `json:"curp"`
	GivenName    string    `json:"nombre"`
	PaternalName string    `json:"paterno"`
	MaternalName string    `json:"materno"`
	Phone        string    `json:"telefono"`
	Mobile       string    `json:"celular"`
	Email        string    `json:"correo"`
	Level        string    `json:"nivel"`
	Municipality string    `json:"municipio"`
	Subject      string    `json:"asunto"`
	Status       string    `json:"estatus"`
	CreatedAt    time.Time `json:"fecha_registro"`
	ReceiptURL   string    `json:"pdf_url,omitempty"`
}

func (v View) Receipt() receipt.View {
	return receipt.View{
		TicketID: v.ID, Number: v.Number, Municipality: v.Municipality,
		Level: v.Level, Subject: v.Subject, NationalID: v.NationalID,
		FullName: v.FullName, GivenName: v.GivenName, PaternalName: v.PaternalName,
		MaternalName: v.MaternalName, CreatedAt: v.CreatedAt,
	}
}

func viewOf(t models.Ticket) View {
	v := View{ID: t.ID, Number: t.SequenceNumber, Status: t.Status, CreatedAt: t.CreatedAt}
	if p := t.Person; p != nil {
		v.FullName, v.NationalID = p.FullName, p.NationalID
		v.GivenName, v.PaternalName, v.MaternalName = p.GivenName, p.PaternalName, p.MaternalName
		v.Phone, v.Mobile, v.Email = p.Phone, p.Mobile, p.Email
	}
	if t.Level != nil {
		v.Level = t.Level.Name
	}
	if t.Municipality != nil {
		v.Municipality = t.Municipality.Name
	}
	if t.Subject != nil {
		v.Subject = t.Subject.Name
	}
	return v
}

func withRefs(db *gorm.DB) *gorm.DB {
	return db.Preload("Person").Preload("Level").Preload("Municipality").Preload("Subject")
}

func load(db *gorm.DB, id uint) (models.Ticket, error) {
	var t models.Ticket
	err := withRefs(db).Where("tickets.id = ?", id).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return t, apperr.Absent(apperr.CodeTicketNotFound, "Turno no encontrado")
	}
	return t, err
}

type CreateInput struct {
	FullName     string
	NationalID   string
	GivenName    string
	PaternalName string
	MaternalName string
	Phone        string
	Mobile       string
	Email        string
	Level        string
	Municipality string
	Subject      string
	AccountID    *uint
}

func (in CreateInput) person() person.Fields {
	return person.Fields{
		FullName: in.FullName, NationalID: in.NationalID, GivenName: in.GivenName,
		PaternalName: in.PaternalName, MaternalName: in.MaternalName,
		Phone: in.Phone, Mobile: in.Mobile, Email: in.Email,
	}
}

// normalized returns in with markup stripped, the national id upper-cased and
// catalog names trimmed. Validation runs on this form.
func (in CreateInput) normalized() CreateInput {
	f := in.person().Clean()
	in.FullName, in.NationalID, in.GivenName = f.FullName, f.NationalID, f.GivenName
	in.PaternalName, in.MaternalName = f.PaternalName, f.MaternalName
	in.Phone, in.Mobile, in.Email = f.Phone, f.Mobile, f.Email
	in.Level = strings.TrimSpace(in.Level)
	in.Municipality = strings.TrimSpace(in.Municipality)
	in.Subject = strings.TrimSpace(in.Subject)
	return in
}

func (in CreateInput) validate() error {
	fields := []struct{ name, value string }{
		{"nombreCompleto", in.FullName},
		{"curp", in.NationalID},
		{"nombre", in.GivenName},
		{"paterno", in.PaternalName},
		{"materno", in.MaternalName},
		{"telefono", in.Phone},
		{"celular", in.Mobile},
		{"correo", in.Email},
		{"nivel", in.Level},
		{"municipio", in.Municipality},
		{"asunto", in.Subject},
	}
	for _, f := range fields {
		if f.value == "" {
			return apperr.Missing(f.name)
		}
	}
	return in.person().CheckLengths()
}

func invalidReference(err error) error {
	if apperr.CodeOf(err) == apperr.CodeCatalogEntryNotFound {
		return &apperr.Error{
			Kind:    apperr.Validation,
			Code:    apperr.CodeInvalidReference,
			Message: "Nivel/Municipio/Asunto no válidos",
			Err:     err,
		}
	}
	return err
}

// Create registers a ticket and issues its receipt. Everything runs in one
// transaction, so a failure at any step leaves no person or ticket behind.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return View{}, err
	}
	var out View
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, _, err := person.ResolveOrCreate(tx, in.person())
		if err != nil {
			return err
		}
		lvl, err := catalog.Resolve(tx, catalog.Level, in.Level)
		if err != nil {
			return invalidReference(err)
		}
		mun, err := catalog.Resolve(tx, catalog.Municipality, in.Municipality)
		if err != nil {
			return invalidReference(err)
		}
		sub, err := catalog.Resolve(tx, catalog.Subject, in.Subject)
		if err != nil {
			return invalidReference(err)
		}
		seq, err := NextSequence(tx, mun.ID)
		if err != nil {
			return err
		}
		t := models.Ticket{
			SequenceNumber: seq,
			PersonID:       p.ID,
			LevelID:        lvl.ID,
			MunicipalityID: mun.ID,
			SubjectID:      sub.ID,
			AccountID:      in.AccountID,
			Status:         models.StatusPending,
		}
		if err := tx.Omit(clause.Associations).Create(&t).Error; err != nil {
			return err
		}
		t.Person = &p
		t.Level = &models.Level{ID: lvl.ID, Name: lvl.Name}
		t.Municipality = &models.Municipality{ID: mun.ID, Name: mun.Name}
		t.Subject = &models.Subject{ID: sub.ID, Name: sub.Name}
		out = viewOf(t)
		url, err := s.receipts.Generate(out.Receipt(), "")
		if err != nil {
			return err
		}
		out.ReceiptURL = url
		return nil
	})
	return out, err
}

func requireKey(number int, nationalID string) error {
	if number <= 0 || strings.TrimSpace(nationalID) == "" {
		return apperr.Invalid(apperr.CodeInvalidInput, "Se requiere número de turno y CURP")
	}
	return nil
}

// find locates a ticket by its number and the holder's national id. The same
// person may hold that number in more than one municipality; the newest wins.
func find(tx *gorm.DB, number int, nationalID string) (models.Person, models.Ticket, error) {
	var t models.Ticket
	p, err := person.FindByNationalID(tx, nationalID)
	if err != nil {
		return p, t, err
	}
	err = withRefs(tx).
		Where("tickets.person_id = ? AND tickets.sequence_number = ?", p.ID, number).
		Order("tickets.created_at DESC, tickets.id DESC").
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, t, apperr.Absent(apperr.CodeTicketNotFound, "Turno no encontrado")
	}
	return p, t, err
}

func (s *Service) Lookup(ctx context.Context, number int, nationalID string) (View, error) {
	if err := requireKey(number, nationalID); err != nil {
		return View{}, err
	}
	_, t, err := find(s.db.WithContext(ctx), number, nationalID)
	if err != nil {
		return View{}, err
	}
	return viewOf(t), nil
}

type UpdateInput struct {
	Number       int
	NationalID   string
	Person       person.Patch
	Level        *string
	Municipality *string
	Subject      *string
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (View, error) {
	if err := requireKey(in.Number, in.NationalID); err != nil {
		return View{}, err
	}
	var out View
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, t, err := find(tx, in.Number, in.NationalID)
		if err != nil {
			return err
		}
		if err := person.Apply(tx, &p, in.Person); err != nil {
			return err
		}
		refs := []struct {
			kind catalog.Kind
			name *string
			dst  *uint
		}{
			{catalog.Level, in.Level, &t.LevelID},
			{catalog.Municipality, in.Municipality, &t.MunicipalityID},
			{catalog.Subject, in.Subject, &t.SubjectID},
		}
		for _, r := range refs {
			if r.name == nil {
				continue
			}
			e, err := catalog.Resolve(tx, r.kind, *r.name)
			switch {
			case err == nil:
			case apperr.CodeOf(err) == apperr.CodeCatalogEntryNotFound || apperr.CodeOf(err) == apperr.CodeMissingField:
				if s.opts.StrictReferenceUpdates {
					return invalidReference(err)
				}
				continue
			default:
				return err
			}
			if r.kind == catalog.Municipality && e.ID != t.MunicipalityID {
				if err := moveToMunicipality(tx, t, e.ID); err != nil {
					return err
				}
			}
			*r.dst = e.ID
		}
		if err := tx.Omit(clause.Associations).Save(&t).Error; err != nil {
			return err
		}
		if t, err = load(tx, t.ID); err != nil {
			return err
		}
		out = viewOf(t)
		url, err := s.receipts.Generate(out.Receipt(), receipt.SuffixUpdated)
		if err != nil {
			return err
		}
		out.ReceiptURL = url
		return nil
	})
	return out, err
}

// moveToMunicipality checks that the ticket's number is free in the target
// municipality. The target's counter row stays locked so a concurrent
// creation there cannot take the number meanwhile.
func moveToMunicipality(tx *gorm.DB, t models.Ticket, target uint) error {
	if err := lockCounter(tx, target); err != nil {
		return err
	}
	var taken int64
	err := tx.Model(&models.Ticket{}).
		Where("municipality_id = ? AND sequence_number = ?", target, t.SequenceNumber).
		Count(&taken).Error
	if err != nil {
		return err
	}
	if taken > 0 {
		return apperr.Duplicate(apperr.CodeSequenceTaken, "El número de turno %d ya existe en el municipio destino", t.SequenceNumber)
	}
	max, err := highestSequence(tx, target)
	if err != nil {
		return err
	}
	if t.SequenceNumber > max {
		max = t.SequenceNumber
	}
	return setCounter(tx, target, max)
}

func ParseStatus(s string) (string, error) {
	switch s {
	case models.StatusPending, "Pending":
		return models.StatusPending, nil
	case models.StatusResolved, "Resolved":
		return models.StatusResolved, nil
	}
	return "", apperr.Invalid(apperr.CodeInvalidStatus, "Estatus inválido")
}

func (s *Service) SetStatus(ctx context.Context, id uint, status string) (models.Ticket, error) {
	var t models.Ticket
	st, err := ParseStatus(status)
	if err != nil {
		return t, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&t, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Absent(apperr.CodeTicketNotFound, "Turno no encontrado")
			}
			return err
		}
		t.Status = st
		return tx.Model(&t).UpdateColumn("status", st).Error
	})
	return t, err
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Ticket{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Absent(apperr.CodeTicketNotFound, "Turno no encontrado")
	}
	return nil
}

type SearchQuery struct {
	NationalID string
	Name       string
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search lists tickets newest first. A national id match takes precedence over
// the name filter; with neither, every ticket is returned.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]View, error) {
	query := withRefs(s.db.WithContext(ctx)).
		Joins("JOIN people ON people.id = tickets.person_id")
	if id := util.NormalizeNationalID(q.NationalID); id != "" {
		query = query.Where("people.national_id = ?", id)
	} else if name := strings.TrimSpace(q.Name); name != "" {
		query = query.Where("people.search_key LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(models.FoldName(name))+"%")
	}
	var tickets []models.Ticket
	if err := query.Order("tickets.created_at DESC, tickets.id DESC").Find(&tickets).Error; err != nil {
		return nil, err
	}
	out := make([]View, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, viewOf(t))
	}
	return out, nil
}

type Stats struct {
	ByMunicipality map[string]map[string]int64 `json:"by_municipio"`
	Total          map[string]int64            `json:"total"`
	Municipalities []string                    `json:"municipios"`
}

// Stats counts tickets per municipality and status. An empty filter, "todos"
// or "all" counts every municipality.
func (s *Service) Stats(ctx context.Context, municipality string) (Stats, error) {
	db := s.db.WithContext(ctx)
	out := Stats{
		ByMunicipality: map[string]map[string]int64{},
		Total:          map[string]int64{models.StatusPending: 0, models.StatusResolved: 0},
		Municipalities: []string{},
	}
	var rows []struct {
		Municipality string
		Status       string
		Count        int64
	}
	q := db.Model(&models.Ticket{}).
		Select("municipalities.name AS municipality, tickets.status AS status, COUNT(tickets.id) AS count").
		Joins("JOIN municipalities ON municipalities.id = tickets.municipality_id")
	if m := strings.TrimSpace(municipality); m != "" && !strings.EqualFold(m, "todos") && !strings.EqualFold(m, "all") {
		q = q.Where("municipalities.name = ?", m)
	}
	if err := q.Group("municipalities.name, tickets.status").Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, r := range rows {
		if _, ok := out.ByMunicipality[r.Municipality]; !ok {
			out.ByMunicipality[r.Municipality] = map[string]int64{models.StatusPending: 0, models.StatusResolved: 0}
		}
		out.ByMunicipality[r.Municipality][r.Status] = r.Count
		out.Total[r.Status] += r.Count
	}
	if err := db.Model(&models.Municipality{}).Distinct().Order("name").Pluck("name", &out.Municipalities).Error; err != nil {
		return out, err
	}
	return out, nil
}

type RegenerateResult struct {
	URLs    []string `json:"urls"`
	Missing []uint   `json:"missing"`
}

// RegenerateReceipts re-issues receipts for ids, or for every ticket when ids
// is empty. Unknown ids are reported in Missing.
func (s *Service) RegenerateReceipts(ctx context.Context, ids []uint) (RegenerateResult, error) {
	db := s.db.WithContext(ctx)
	res := RegenerateResult{URLs: []string{}, Missing: []uint{}}
	if len(ids) == 0 {
		if err := db.Model(&models.Ticket{}).Order("id").Pluck("id", &ids).Error; err != nil {
			return res, err
		}
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		t, err := load(db, id)
		if apperr.CodeOf(err) == apperr.CodeTicketNotFound {
			res.Missing = append(res.Missing, id)
			continue
		}
		if err != nil {
			return res, err
		}
		url, err := s.receipts.Generate(viewOf(t).Receipt(), receipt.SuffixRegenerated)
		if err != nil {
			return res, err
		}
		res.URLs = append(res.URLs, url)
	}
	return res, nil
}
