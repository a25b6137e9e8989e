package profile

import (
	"reflect"
	"strings"
)

// emptier is implemented by the section types so IsEmpty can dispatch
// without reflection.
type emptier interface {
	IsEmpty() bool
}

// IsEmpty reports whether v carries no data. A value is empty if it is nil,
// a blank string, an empty collection, or a collection whose members are all
// empty under the same rule. A nil pointer of any type is empty.
func IsEmpty(v any) bool {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return true
	}
	switch x := v.(type) {
	case nil:
		return true
	case emptier:
		return x.IsEmpty()
	case string:
		return strings.TrimSpace(x) == ""
	case *string:
		return blank(x)
	case []string:
		return allBlank(x)
	case []any:
		for _, e := range x {
			if !IsEmpty(e) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, e := range x {
			if !IsEmpty(e) {
				return false
			}
		}
		return true
	case bool, float64, int, int64:
		return false
	}
	return isEmptyValue(reflect.ValueOf(v))
}

// isEmptyValue handles the shapes the type switch does not list, such as
// slices of section entries or typed maps.
func isEmptyValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsEmpty(rv.Elem().Interface())
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !IsEmpty(rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if !IsEmpty(iter.Value().Interface()) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			if !IsEmpty(rv.Field(i).Interface()) {
				return false
			}
		}
		return true
	}
	return false
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func allBlank(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

func (p Profile) IsEmpty() bool {
	return p.Identity.IsEmpty() &&
		p.CareerIntent.IsEmpty() &&
		blank(p.ProfessionalSummary) &&
		p.Skills.IsEmpty() &&
		experienceEmpty(p.Experience) &&
		educationEmpty(p.Education) &&
		projectsEmpty(p.Projects) &&
		allBlank(p.Achievements)
}

func (i *Identity) IsEmpty() bool {
	if i == nil {
		return true
	}
	return blank(i.Name) && blank(i.Email) && blank(i.Phone) && blank(i.Location) && allBlank(i.Links)
}

func (c *CareerIntent) IsEmpty() bool {
	if c == nil {
		return true
	}
	return blank(c.CurrentStatus) && allBlank(c.TargetRoles) && blank(c.Industry)
}

func (s *Skills) IsEmpty() bool {
	if s == nil {
		return true
	}
	return allBlank(s.Technical) && allBlank(s.Tools) && allBlank(s.Soft)
}

func (e Experience) IsEmpty() bool {
	return blank(e.Company) && blank(e.Role) && blank(e.Duration) && allBlank(e.Responsibilities)
}

func (e Education) IsEmpty() bool {
	return blank(e.Degree) && blank(e.Institution) && blank(e.Year) && blank(e.Specialization)
}

func (p Project) IsEmpty() bool {
	return blank(p.Name) && blank(p.TechStack) && blank(p.Impact)
}

func (l Legacy) IsEmpty() bool {
	return blank(l.Name) && blank(l.Email) && blank(l.Phone) && blank(l.Bio) && blank(l.LookingFor) && blank(l.Skills)
}

func experienceEmpty(es []Experience) bool {
	for _, e := range es {
		if !e.IsEmpty() {
			return false
		}
	}
	return true
}

func educationEmpty(es []Education) bool {
	for _, e := range es {
		if !e.IsEmpty() {
			return false
		}
	}
	return true
}

func projectsEmpty(ps []Project) bool {
	for _, p := range ps {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// sectionEmpty applies IsEmpty to one section of p.
func (p Profile) sectionEmpty(s Section) bool {
	switch s {
	case SectionIdentity:
		return p.Identity.IsEmpty()
	case SectionCareerIntent:
		return p.CareerIntent.IsEmpty()
	case SectionProfessionalSummary:
		return blank(p.ProfessionalSummary)
	case SectionSkills:
		return p.Skills.IsEmpty()
	case SectionExperience:
		return experienceEmpty(p.Experience)
	case SectionEducation:
		return educationEmpty(p.Education)
	case SectionProjects:
		return projectsEmpty(p.Projects)
	case SectionAchievements:
		return allBlank(p.Achievements)
	}
	return true
}

func (r Record) IsEmpty() bool {
	return r.Profile.IsEmpty() && r.Legacy.IsEmpty()
}
