package profile

import (
	"encoding/json"
	"strings"
)

// Patch is a sparse set of writes produced by Reconcile. A section or legacy
// field is part of the patch iff it is non-empty in Values or Legacy; absent
// entries mean "leave untouched".
type Patch struct {
	Values Profile
	Legacy Legacy
}

// Reconcile decides which sections of extracted may be written over
// existing. A section is taken only when the existing one is empty and the
// extracted one is not, so data already present is never overwritten.
// Sections merge whole: a non-empty skills object is never topped up.
// Neither input is modified.
func Reconcile(existing, extracted Profile) Patch {
	var p Patch
	for _, s := range Sections {
		if existing.sectionEmpty(s) && !extracted.sectionEmpty(s) {
			p.Values.copySection(s, extracted)
		}
	}
	return p
}

// ReconcileRecord is Reconcile plus the legacy columns. Each legacy column is
// filled from the value derived from extracted under the same rule.
func ReconcileRecord(existing Record, extracted Profile) Patch {
	p := Reconcile(existing.Profile, extracted)
	derived := DeriveLegacy(extracted)
	for _, f := range LegacyFields {
		cur, next := existing.Legacy.field(f), derived.field(f)
		if blank(*cur) && !blank(*next) {
			*p.Legacy.field(f) = strPtr(**next)
		}
	}
	return p
}

// DeriveLegacy computes the flat legacy columns from structured data.
func DeriveLegacy(p Profile) Legacy {
	var l Legacy
	if p.Identity != nil {
		l.Name = cloneStr(p.Identity.Name)
		l.Email = cloneStr(p.Identity.Email)
		l.Phone = cloneStr(p.Identity.Phone)
	}
	l.Bio = cloneStr(p.ProfessionalSummary)
	if p.CareerIntent != nil {
		switch {
		case len(p.CareerIntent.TargetRoles) > 0:
			l.LookingFor = strPtr(p.CareerIntent.TargetRoles[0])
		case !blank(p.CareerIntent.CurrentStatus):
			l.LookingFor = cloneStr(p.CareerIntent.CurrentStatus)
		}
	}
	if p.Skills != nil {
		var all []string
		all = append(all, p.Skills.Technical...)
		all = append(all, p.Skills.Tools...)
		all = append(all, p.Skills.Soft...)
		if len(all) > 0 {
			l.Skills = strPtr(strings.Join(all, ", "))
		}
	}
	return l
}

// Has reports whether the patch writes section s.
func (p Patch) Has(s Section) bool {
	return !p.Values.sectionEmpty(s)
}

// HasLegacy reports whether the patch writes legacy field f.
func (p Patch) HasLegacy(f LegacyField) bool {
	return !blank(*p.Legacy.field(f))
}

// Sections lists the sections the patch writes, in canonical order.
func (p Patch) Sections() []Section {
	var out []Section
	for _, s := range Sections {
		if p.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// LegacyFields lists the legacy columns the patch writes.
func (p Patch) LegacyFields() []LegacyField {
	var out []LegacyField
	for _, f := range LegacyFields {
		if p.HasLegacy(f) {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether applying the patch would change nothing.
func (p Patch) Empty() bool {
	return len(p.Sections()) == 0 && len(p.LegacyFields()) == 0
}

// Apply returns a copy of r with the patch written over it.
func (p Patch) Apply(r Record) Record {
	out := cloneRecord(r)
	for _, s := range p.Sections() {
		out.Profile.copySection(s, p.Values)
	}
	for _, f := range p.LegacyFields() {
		*out.Legacy.field(f) = cloneStr(*p.Legacy.field(f))
	}
	return out
}

// MarshalJSON emits only the entries the patch writes.
func (p Patch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	for _, s := range p.Sections() {
		out[string(s)] = p.Values.Section(s)
	}
	if fields := p.LegacyFields(); len(fields) > 0 {
		legacy := make(map[string]string, len(fields))
		for _, f := range fields {
			legacy[string(f)] = **p.Legacy.field(f)
		}
		out["legacy"] = legacy
	}
	return json.Marshal(out)
}

// Section returns the value of section s.
func (p Profile) Section(s Section) any {
	switch s {
	case SectionIdentity:
		return p.Identity
	case SectionCareerIntent:
		return p.CareerIntent
	case SectionProfessionalSummary:
		return p.ProfessionalSummary
	case SectionSkills:
		return p.Skills
	case SectionExperience:
		return p.Experience
	case SectionEducation:
		return p.Education
	case SectionProjects:
		return p.Projects
	case SectionAchievements:
		return p.Achievements
	}
	return nil
}

// copySection deep-copies section s from src into p.
func (p *Profile) copySection(s Section, src Profile) {
	switch s {
	case SectionIdentity:
		p.Identity = cloneIdentity(src.Identity)
	case SectionCareerIntent:
		p.CareerIntent = cloneCareerIntent(src.CareerIntent)
	case SectionProfessionalSummary:
		p.ProfessionalSummary = cloneStr(src.ProfessionalSummary)
	case SectionSkills:
		p.Skills = cloneSkills(src.Skills)
	case SectionExperience:
		p.Experience = cloneExperience(src.Experience)
	case SectionEducation:
		p.Education = cloneEducation(src.Education)
	case SectionProjects:
		p.Projects = cloneProjects(src.Projects)
	case SectionAchievements:
		p.Achievements = cloneStrings(src.Achievements)
	}
}

func (l *Legacy) field(f LegacyField) **string {
	switch f {
	case LegacyName:
		return &l.Name
	case LegacyEmail:
		return &l.Email
	case LegacyPhone:
		return &l.Phone
	case LegacyBio:
		return &l.Bio
	case LegacyLookingFor:
		return &l.LookingFor
	case LegacySkills:
		return &l.Skills
	}
	var none *string
	return &none
}

// Value returns legacy field f as a string, or nil when unset.
func (l Legacy) Value(f LegacyField) any {
	v := *l.field(f)
	if blank(v) {
		return nil
	}
	return *v
}
