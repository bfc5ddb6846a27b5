package maintenance

import (
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// relatedSystems groups maintenance types that are usually serviced together.
var relatedSystems = [][]string{
	{"oleo", "filtro_oleo", "filtro_ar", "filtro_combustivel"},
	{"pastilhas_freio", "discos_freio", "fluido_freio", "freios"},
	{"pneus", "rodizio_pneus", "alinhamento", "balanceamento", "suspensao"},
	{"arrefecimento", "liquido_arrefecimento", "radiador", "bomba_agua"},
	{"oleo_cambio", "embreagem", "transmissao"},
	{"correia_dentada", "correia_acessorios", "tensor_correia"},
	{"velas", "cabos_vela", "bobina_ignicao"},
}

var stopwords = map[string]struct{}{
	"de": {}, "do": {}, "da": {}, "dos": {}, "das": {}, "e": {}, "the": {}, "and": {}, "of": {},
}

// Suggestion is an active program worth recalculating together with a
// performed service. It is never applied automatically.
type Suggestion struct {
	Program   models.ScheduledMaintenance `json:"program"`
	RelatedTo string                      `json:"related_to"`
	Reason    string                      `json:"reason"`
}

// Suggest returns active programs related to the performed types, excluding
// the performed ones themselves. Each program is suggested at most once.
func Suggest(active []models.ScheduledMaintenance, performed []string) []Suggestion {
	done := make(map[string]struct{}, len(performed))
	for _, t := range performed {
		done[t] = struct{}{}
	}

	var out []Suggestion
	seen := make(map[string]struct{})
	for _, t := range performed {
		for _, p := range active {
			if _, ok := done[p.MaintenanceType]; ok {
				continue
			}
			if _, ok := seen[p.MaintenanceType]; ok {
				continue
			}
			reason := relation(t, p)
			if reason == "" {
				continue
			}
			seen[p.MaintenanceType] = struct{}{}
			out = append(out, Suggestion{Program: p, RelatedTo: t, Reason: reason})
		}
	}
	return out
}

func relation(performed string, p models.ScheduledMaintenance) string {
	for _, group := range relatedSystems {
		if contains(group, performed) && contains(group, p.MaintenanceType) {
			return "same_system"
		}
	}

	want := tokens(performed)
	for tok := range tokens(p.MaintenanceType + " " + p.MaintenanceName) {
		if _, ok := want[tok]; ok {
			return "shared_term"
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '/'
	})
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}
