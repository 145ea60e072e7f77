package rules

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// FileSource reads a YAML rule pack from disk on every Load.
type FileSource struct {
	Path string
}

// NewFileSource returns a source for the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

type filePack struct {
	SLARules      []fileSLARule       `yaml:"sla_rules"`
	BusinessHours []fileBusinessHours `yaml:"business_hours"`
	WorkflowRules []fileWorkflowRule  `yaml:"workflow_rules"`
}

type fileSLARule struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	EntityID            *string  `yaml:"entity_id"`
	Priority            string   `yaml:"priority"`
	ResponseTimeHours   *float64 `yaml:"response_time_hours"`
	ResolutionTimeHours *float64 `yaml:"resolution_time_hours"`
	EscalationTimeHours *float64 `yaml:"escalation_time_hours"`
	BusinessHoursOnly   bool     `yaml:"business_hours_only"`
	Active              *bool    `yaml:"active"`
}

type fileBusinessHours struct {
	ID        string  `yaml:"id"`
	EntityID  *string `yaml:"entity_id"`
	DayOfWeek int     `yaml:"day_of_week"`
	Start     string  `yaml:"start"`
	End       string  `yaml:"end"`
	Active    *bool   `yaml:"active"`
}

type fileWorkflowRule struct {
	ID           string   `yaml:"id"`
	FromStatus   string   `yaml:"from_status"`
	ToStatus     string   `yaml:"to_status"`
	AllowedRoles []string `yaml:"allowed_roles"`
	Priority     string   `yaml:"priority"`
	Category     *string  `yaml:"category"`
	RequiresNote bool     `yaml:"requires_note"`
	AutoAssign   bool     `yaml:"auto_assign"`
	Active       *bool    `yaml:"active"`
}

// Load parses the rule pack.
func (s *FileSource) Load(_ context.Context) (Data, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Data{}, fmt.Errorf("read rule pack %s: %w", s.Path, err)
	}
	return ParsePack(raw)
}

// ParsePack decodes a YAML rule pack. Entries are active unless they say
// otherwise; `priority: all` (or an empty priority) is the wildcard.
func ParsePack(raw []byte) (Data, error) {
	var pack filePack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return Data{}, fmt.Errorf("parse rule pack: %w", err)
	}

	data := Data{
		SLARules:      make([]domain.SLARule, 0, len(pack.SLARules)),
		BusinessHours: make([]domain.BusinessHoursEntry, 0, len(pack.BusinessHours)),
		WorkflowRules: make([]domain.WorkflowRule, 0, len(pack.WorkflowRules)),
	}

	for i, r := range pack.SLARules {
		priority, err := domain.ParsePriorityFilter(r.Priority)
		if err != nil {
			return Data{}, fmt.Errorf("sla_rules[%d]: %w", i, err)
		}
		data.SLARules = append(data.SLARules, domain.SLARule{
			ID:                  idOrNew(r.ID),
			Name:                r.Name,
			EntityID:            nonEmpty(r.EntityID),
			Priority:            priority,
			ResponseTimeHours:   r.ResponseTimeHours,
			ResolutionTimeHours: r.ResolutionTimeHours,
			EscalationTimeHours: r.EscalationTimeHours,
			BusinessHoursOnly:   r.BusinessHoursOnly,
			Active:              boolOr(r.Active, true),
		})
	}

	for i, h := range pack.BusinessHours {
		if h.DayOfWeek < 0 || h.DayOfWeek > 6 {
			return Data{}, fmt.Errorf("business_hours[%d]: day_of_week %d out of range", i, h.DayOfWeek)
		}
		start, err := domain.ParseTimeOfDay(h.Start)
		if err != nil {
			return Data{}, fmt.Errorf("business_hours[%d]: %w", i, err)
		}
		end, err := domain.ParseTimeOfDay(h.End)
		if err != nil {
			return Data{}, fmt.Errorf("business_hours[%d]: %w", i, err)
		}
		data.BusinessHours = append(data.BusinessHours, domain.BusinessHoursEntry{
			ID:        idOrNew(h.ID),
			EntityID:  nonEmpty(h.EntityID),
			DayOfWeek: time.Weekday(h.DayOfWeek),
			Start:     start,
			End:       end,
			Active:    boolOr(h.Active, true),
		})
	}

	for i, w := range pack.WorkflowRules {
		if w.FromStatus == "" || w.ToStatus == "" {
			return Data{}, fmt.Errorf("workflow_rules[%d]: from_status and to_status required", i)
		}
		priority, err := domain.ParsePriorityFilter(w.Priority)
		if err != nil {
			return Data{}, fmt.Errorf("workflow_rules[%d]: %w", i, err)
		}
		data.WorkflowRules = append(data.WorkflowRules, domain.WorkflowRule{
			ID:           idOrNew(w.ID),
			FromStatus:   w.FromStatus,
			ToStatus:     w.ToStatus,
			AllowedRoles: domain.NewRoleSet(w.AllowedRoles...),
			Priority:     priority,
			Category:     nonEmpty(w.Category),
			RequiresNote: w.RequiresNote,
			AutoAssign:   w.AutoAssign,
			Active:       boolOr(w.Active, true),
		})
	}
	return data, nil
}

func nonEmpty(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
