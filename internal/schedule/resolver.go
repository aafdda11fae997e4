package schedule

import (
	"context"

	"github.com/google/uuid"
)

// Resolver supplies the effective weekly template for a doctor. A branch
// override, when present, supersedes the doctor's own template; when
// neither exists the resolver falls back to its configured default, so
// callers always get a usable template.
type Resolver interface {
	EffectiveSchedule(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID) (WeeklyTemplate, error)
}

// StaticResolver holds templates in memory. It backs single-process
// deployments and tests; production deployments implement Resolver over
// their doctor directory.
type StaticResolver struct {
	Default  WeeklyTemplate
	Doctors  map[uuid.UUID]WeeklyTemplate
	Branches map[uuid.UUID]map[uuid.UUID]WeeklyTemplate // branch -> doctor -> template
}

func NewStaticResolver(fallback WeeklyTemplate) *StaticResolver {
	if fallback == nil {
		fallback = DefaultTemplate()
	}
	return &StaticResolver{
		Default:  fallback,
		Doctors:  make(map[uuid.UUID]WeeklyTemplate),
		Branches: make(map[uuid.UUID]map[uuid.UUID]WeeklyTemplate),
	}
}

func (r *StaticResolver) SetDoctor(doctorID uuid.UUID, t WeeklyTemplate) {
	r.Doctors[doctorID] = t
}

func (r *StaticResolver) SetBranchOverride(branchID, doctorID uuid.UUID, t WeeklyTemplate) {
	if r.Branches[branchID] == nil {
		r.Branches[branchID] = make(map[uuid.UUID]WeeklyTemplate)
	}
	r.Branches[branchID][doctorID] = t
}

func (r *StaticResolver) EffectiveSchedule(_ context.Context, doctorID uuid.UUID, branchID *uuid.UUID) (WeeklyTemplate, error) {
	if branchID != nil {
		if t, ok := r.Branches[*branchID][doctorID]; ok {
			return t, nil
		}
	}
	if t, ok := r.Doctors[doctorID]; ok {
		return t, nil
	}
	return r.Default, nil
}
