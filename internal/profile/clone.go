package profile

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

func cloneIdentity(i *Identity) *Identity {
	if i == nil {
		return nil
	}
	return &Identity{
		Name:     cloneStr(i.Name),
		Email:    cloneStr(i.Email),
		Phone:    cloneStr(i.Phone),
		Location: cloneStr(i.Location),
		Links:    cloneStrings(i.Links),
	}
}

func cloneCareerIntent(c *CareerIntent) *CareerIntent {
	if c == nil {
		return nil
	}
	return &CareerIntent{
		CurrentStatus: cloneStr(c.CurrentStatus),
		TargetRoles:   cloneStrings(c.TargetRoles),
		Industry:      cloneStr(c.Industry),
	}
}

func cloneSkills(s *Skills) *Skills {
	if s == nil {
		return nil
	}
	return &Skills{
		Technical: cloneStrings(s.Technical),
		Tools:     cloneStrings(s.Tools),
		Soft:      cloneStrings(s.Soft),
	}
}

func cloneExperience(es []Experience) []Experience {
	if es == nil {
		return nil
	}
	out := make([]Experience, len(es))
	for i, e := range es {
		out[i] = Experience{
			Company:          cloneStr(e.Company),
			Role:             cloneStr(e.Role),
			Duration:         cloneStr(e.Duration),
			Responsibilities: cloneStrings(e.Responsibilities),
		}
	}
	return out
}

func cloneEducation(es []Education) []Education {
	if es == nil {
		return nil
	}
	out := make([]Education, len(es))
	for i, e := range es {
		out[i] = Education{
			Degree:         cloneStr(e.Degree),
			Institution:    cloneStr(e.Institution),
			Year:           cloneStr(e.Year),
			Specialization: cloneStr(e.Specialization),
		}
	}
	return out
}

func cloneProjects(ps []Project) []Project {
	if ps == nil {
		return nil
	}
	out := make([]Project, len(ps))
	for i, p := range ps {
		out[i] = Project{
			Name:      cloneStr(p.Name),
			TechStack: cloneStr(p.TechStack),
			Impact:    cloneStr(p.Impact),
		}
	}
	return out
}

func cloneProfile(p Profile) Profile {
	return Profile{
		Identity:            cloneIdentity(p.Identity),
		CareerIntent:        cloneCareerIntent(p.CareerIntent),
		ProfessionalSummary: cloneStr(p.ProfessionalSummary),
		Skills:              cloneSkills(p.Skills),
		Experience:          cloneExperience(p.Experience),
		Education:           cloneEducation(p.Education),
		Projects:            cloneProjects(p.Projects),
		Achievements:        cloneStrings(p.Achievements),
	}
}

func cloneRecord(r Record) Record {
	return Record{
		Profile: cloneProfile(r.Profile),
		Legacy: Legacy{
			Name:       cloneStr(r.Legacy.Name),
			Email:      cloneStr(r.Legacy.Email),
			Phone:      cloneStr(r.Legacy.Phone),
			Bio:        cloneStr(r.Legacy.Bio),
			LookingFor: cloneStr(r.Legacy.LookingFor),
			Skills:     cloneStr(r.Legacy.Skills),
		},
	}
}
