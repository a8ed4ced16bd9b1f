// Package schema defines the canonical column set every ingested complaint is
// coerced into, the raw source headers that feed each column, and the Arrow
// types used to persist them.
package schema

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Sentinel replaces missing categorical values.
const Sentinel = "not informed"

// Kind is the semantic type of a canonical column.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
	KindDate
	KindYear
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindYear:
		return "year"
	default:
		return "text"
	}
}

// Canonical column names.
const (
	RegistrationDate          = "registration_date"
	ResponseDeadlineDate      = "response_deadline_date"
	ResponseDate              = "response_date"
	RegistrationYear          = "registration_year"
	DaysToResolution          = "days_to_resolution"
	DaysOverdue               = "days_overdue"
	Gender                    = "gender"
	AgeBracket                = "age_bracket"
	RaceColor                 = "race_color"
	ComplainantMunicipality   = "complainant_municipality"
	ComplainantState          = "complainant_state"
	ManifestationMunicipality = "manifestation_municipality"
	ManifestationState        = "manifestation_state"
	ManifestationType         = "manifestation_type"
	AgencyName                = "agency_name"
	AgencyMunicipality        = "agency_municipality"
	AgencyState               = "agency_state"
	Subject                   = "subject"
	Form                      = "form"
	Status                    = "status"
	Sphere                    = "sphere"
	Service                   = "service"
	OtherService              = "other_service"
	DemandMet                 = "demand_met"
	SatisfactionLabel         = "satisfaction_label"
)

// Column describes one canonical column.
//
// Raw is the snake_case form of the source header (see transformer.ColumnName);
// it is empty for derived columns.
type Column struct {
	Name     string
	Raw      string
	Kind     Kind
	Required bool
}

// Derived reports whether the column is computed rather than read.
func (c Column) Derived() bool { return c.Raw == "" }

// Columns is the canonical column table in artifact order.
var Columns = []Column{
	{Name: RegistrationDate, Raw: "data_registro", Kind: KindDate, Required: true},
	{Name: ResponseDeadlineDate, Raw: "data_prazo_resposta", Kind: KindDate},
	{Name: ResponseDate, Raw: "data_resposta", Kind: KindDate},
	{Name: RegistrationYear, Kind: KindYear},
	{Name: DaysToResolution, Raw: "dias_para_resolucao", Kind: KindNumber},
	{Name: DaysOverdue, Raw: "dias_de_atraso", Kind: KindNumber},
	{Name: Gender, Raw: "genero", Kind: KindText},
	{Name: AgeBracket, Raw: "faixa_etaria", Kind: KindText},
	{Name: RaceColor, Raw: "raca_cor", Kind: KindText},
	{Name: ComplainantMunicipality, Raw: "municipio_manifestante", Kind: KindText},
	{Name: ComplainantState, Raw: "uf_do_municipio_manifestante", Kind: KindText},
	{Name: ManifestationMunicipality, Raw: "municipio_manifestacao", Kind: KindText},
	{Name: ManifestationState, Raw: "uf_do_municipio_manifestacao", Kind: KindText},
	{Name: ManifestationType, Raw: "tipo_manifestacao", Kind: KindText},
	{Name: AgencyName, Raw: "nome_orgao", Kind: KindText},
	{Name: AgencyMunicipality, Raw: "municipio_do_orgao", Kind: KindText},
	{Name: AgencyState, Raw: "uf_do_orgao", Kind: KindText},
	{Name: Subject, Raw: "assunto", Kind: KindText},
	{Name: Form, Raw: "formulario", Kind: KindText},
	{Name: Status, Raw: "situacao", Kind: KindText},
	{Name: Sphere, Raw: "esfera", Kind: KindText},
	{Name: Service, Raw: "servico", Kind: KindText},
	{Name: OtherService, Raw: "outro_servico", Kind: KindText},
	{Name: DemandMet, Raw: "demanda_atendida", Kind: KindText},
	{Name: SatisfactionLabel, Raw: "satisfacao", Kind: KindText},
}

var (
	byName = make(map[string]int, len(Columns))
	byRaw  = make(map[string]int, len(Columns))
)

func init() {
	for i, c := range Columns {
		byName[c.Name] = i
		if c.Raw != "" {
			byRaw[c.Raw] = i
		}
	}
}

// Lookup returns the canonical column with the given name.
func Lookup(name string) (Column, bool) {
	i, ok := byName[name]
	if !ok {
		return Column{}, false
	}
	return Columns[i], true
}

// FromRaw resolves a normalized source header to its canonical column.
// Canonical names are accepted too so already-normalized extracts load as is.
func FromRaw(raw string) (Column, bool) {
	if i, ok := byRaw[raw]; ok {
		return Columns[i], true
	}
	if i, ok := byName[raw]; ok && !Columns[i].Derived() {
		return Columns[i], true
	}
	return Column{}, false
}

// Position returns the canonical order index of name, or -1.
func Position(name string) int {
	if i, ok := byName[name]; ok {
		return i
	}
	return -1
}

// DateType is the Arrow type used for date columns.
var DateType = &arrow.TimestampType{Unit: arrow.Millisecond}

// ArrowType maps a column kind to its Arrow storage type.
func ArrowType(k Kind) arrow.DataType {
	switch k {
	case KindNumber:
		return arrow.PrimitiveTypes.Float64
	case KindDate:
		return DateType
	case KindYear:
		return arrow.PrimitiveTypes.Int32
	default:
		return arrow.BinaryTypes.String
	}
}

// Field returns the Arrow field for c. Only optional dates are nullable.
func (c Column) Field() arrow.Field {
	return arrow.Field{
		Name:     c.Name,
		Type:     ArrowType(c.Kind),
		Nullable: c.Kind == KindDate && !c.Required,
	}
}

// ArrowSchema builds an Arrow schema for the named canonical columns, kept in
// canonical order. Unknown names are ignored.
func ArrowSchema(names []string, md *arrow.Metadata) *arrow.Schema {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	fields := make([]arrow.Field, 0, len(names))
	for _, c := range Columns {
		if _, ok := want[c.Name]; ok {
			fields = append(fields, c.Field())
		}
	}
	return arrow.NewSchema(fields, md)
}

// Names lists every canonical column name in artifact order.
func Names() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Name
	}
	return out
}
