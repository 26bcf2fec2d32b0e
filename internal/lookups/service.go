// Package lookups implements the flat-lookup component of §2: full CRUD
// with referential guards for system-types, usage-statuses, rules, and
// the spares-definition setting; minimal read-only resolution for units
// and manufacturers, which spec.md §1 places out of scope as managed
// entities ("specified only by the interfaces the core consumes").
package lookups

import (
	"context"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

// Service exposes full CRUD for the closed enumerations the core owns,
// and read-only resolution for the two entities it merely references.
type Service struct {
	Store         storage.Storage
	SystemTypes   *sqlite.SystemTypeRepository
	UsageStatuses *sqlite.UsageStatusRepository
	Rules         *sqlite.RuleRepository
	Settings      *sqlite.SettingsRepository
	Units         *sqlite.UnitRepository
	Manufacturers *sqlite.ManufacturerRepository
}

func NewService(store storage.Storage, systemTypes *sqlite.SystemTypeRepository, usageStatuses *sqlite.UsageStatusRepository,
	rules *sqlite.RuleRepository, settings *sqlite.SettingsRepository, units *sqlite.UnitRepository, manufacturers *sqlite.ManufacturerRepository) *Service {
	return &Service{
		Store: store, SystemTypes: systemTypes, UsageStatuses: usageStatuses,
		Rules: rules, Settings: settings, Units: units, Manufacturers: manufacturers,
	}
}

func (s *Service) CreateSystemType(ctx context.Context, value string) (*model.SystemType, error) {
	id, err := ids.New()
	if err != nil {
		return nil, err
	}
	st := &model.SystemType{ID: id, Value: value}
	if err := s.SystemTypes.Create(ctx, s.Store, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) GetSystemType(ctx context.Context, id ids.ID) (*model.SystemType, error) {
	st, err := s.SystemTypes.Get(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, kinderr.New(kinderr.KindMissingRecord, "system type not found")
	}
	return st, nil
}

func (s *Service) ListSystemTypes(ctx context.Context) ([]*model.SystemType, error) {
	return s.SystemTypes.List(ctx, s.Store)
}

func (s *Service) DeleteSystemType(ctx context.Context, id ids.ID) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return s.SystemTypes.Delete(ctx, tx, id)
	})
}

func (s *Service) CreateUsageStatus(ctx context.Context, value string) (*model.UsageStatus, error) {
	id, err := ids.New()
	if err != nil {
		return nil, err
	}
	us := &model.UsageStatus{ID: id, Value: value, Code: ids.Slugify(value)}
	if err := s.UsageStatuses.Create(ctx, s.Store, us); err != nil {
		return nil, err
	}
	return us, nil
}

func (s *Service) GetUsageStatus(ctx context.Context, id ids.ID) (*model.UsageStatus, error) {
	us, err := s.UsageStatuses.Get(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	if us == nil {
		return nil, kinderr.New(kinderr.KindMissingRecord, "usage status not found")
	}
	return us, nil
}

func (s *Service) ListUsageStatuses(ctx context.Context) ([]*model.UsageStatus, error) {
	return s.UsageStatuses.List(ctx, s.Store)
}

func (s *Service) DeleteUsageStatus(ctx context.Context, id ids.ID) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return s.UsageStatuses.Delete(ctx, tx, id)
	})
}

// NewRule is the caller-supplied shape for rule creation. Per §9's open
// question 1, a rule with src == dst (both non-nil, equal) is rejected
// here: a move rule into the same type is never meaningful, and the
// original implementation's comment suggests rejecting self-transitions.
type NewRule struct {
	SrcSystemTypeID  *ids.ID
	DstSystemTypeID  *ids.ID
	DstUsageStatusID *ids.ID
}

func (s *Service) CreateRule(ctx context.Context, nr NewRule) (*model.Rule, error) {
	if nr.SrcSystemTypeID != nil && nr.DstSystemTypeID != nil && *nr.SrcSystemTypeID == *nr.DstSystemTypeID {
		return nil, kinderr.New(kinderr.KindInvalidAction, "a rule's source and destination system type must differ")
	}

	var created *model.Rule
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if nr.SrcSystemTypeID != nil {
			st, err := s.SystemTypes.Get(ctx, tx, *nr.SrcSystemTypeID)
			if err != nil {
				return err
			}
			if st == nil {
				return kinderr.New(kinderr.KindMissingRecord, "source system type not found")
			}
		}
		if nr.DstSystemTypeID != nil {
			st, err := s.SystemTypes.Get(ctx, tx, *nr.DstSystemTypeID)
			if err != nil {
				return err
			}
			if st == nil {
				return kinderr.New(kinderr.KindMissingRecord, "destination system type not found")
			}
		}
		if nr.DstUsageStatusID != nil {
			us, err := s.UsageStatuses.Get(ctx, tx, *nr.DstUsageStatusID)
			if err != nil {
				return err
			}
			if us == nil {
				return kinderr.New(kinderr.KindMissingRecord, "destination usage status not found")
			}
		}

		exists, err := s.Rules.Exists(ctx, tx, nr.SrcSystemTypeID, nr.DstSystemTypeID, nr.DstUsageStatusID)
		if err != nil {
			return err
		}
		if exists {
			return kinderr.New(kinderr.KindDuplicateRecord, "an identical rule already exists")
		}

		id, err := ids.New()
		if err != nil {
			return err
		}
		rule := &model.Rule{ID: id, SrcSystemTypeID: nr.SrcSystemTypeID, DstSystemTypeID: nr.DstSystemTypeID, DstUsageStatusID: nr.DstUsageStatusID}
		if err := s.Rules.Create(ctx, tx, rule); err != nil {
			return err
		}
		created = rule
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) ListRules(ctx context.Context) ([]*model.Rule, error) {
	return s.Rules.List(ctx, s.Store)
}

func (s *Service) DeleteRule(ctx context.Context, id ids.ID) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return s.Rules.Delete(ctx, tx, id)
	})
}

// GetSparesDefinition returns the configured spares-eligible usage
// statuses, or nil if none has been configured.
func (s *Service) GetSparesDefinition(ctx context.Context) (*model.SparesDefinition, error) {
	return s.Settings.GetSparesDefinition(ctx, s.Store)
}

// PutSparesDefinition replaces the spares-eligible usage statuses,
// validating every referenced id resolves to an existing usage status.
func (s *Service) PutSparesDefinition(ctx context.Context, def model.SparesDefinition) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, id := range def.UsageStatuses {
			us, err := s.UsageStatuses.Get(ctx, tx, id)
			if err != nil {
				return err
			}
			if us == nil {
				return kinderr.New(kinderr.KindMissingRecord, "usage status not found")
			}
		}
		return s.Settings.PutSparesDefinition(ctx, tx, &def)
	})
}

// UnitValue resolves a unit id to its display value, the lookup the
// property propagation engine needs when denormalising a stored property.
func (s *Service) UnitValue(ctx context.Context, id ids.ID) (string, error) {
	u, err := s.Units.Get(ctx, s.Store, id)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", kinderr.New(kinderr.KindMissingRecord, "unit not found")
	}
	return u.Value, nil
}

// ManufacturerExists resolves whether a manufacturer id is valid,
// consumed by the catalogue-item create/update path.
func (s *Service) ManufacturerExists(ctx context.Context, id ids.ID) (bool, error) {
	return s.Manufacturers.Exists(ctx, s.Store, id)
}
