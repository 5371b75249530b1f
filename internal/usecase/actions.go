package usecase

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
)

// actionBatchSize is the CRM query service's identifier-list ceiling per
// request.
const actionBatchSize = 48

// syncActions mirrors the CRM's admissions checklist into the target system
// for every active applicant: fetch in batches, upsert everything managed,
// then delete managed rows the CRM no longer has. Deletion strictly follows
// the upserts so a transient fetch gap never wipes live rows first.
func (e *SyncEngine) syncActions(ctx context.Context, active []*admitsync.Record) error {
	sa := e.cfg.Sync.ScheduledActions
	if !sa.Enabled || len(active) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "SyncEngine.SyncActions")
	defer span.End()

	targetByAID := make(map[string]string, len(active))
	aids := make([]string, 0, len(active))
	for _, rec := range active {
		aids = append(aids, rec.AID())
		targetID, _ := rec.Get("PEOPLE_CODE_ID").Str()
		targetByAID[rec.AID()] = targetID
	}

	var all []domain.ScheduledAction
	for start := 0; start < len(aids); start += actionBatchSize {
		end := start + actionBatchSize
		if end > len(aids) {
			end = len(aids)
		}
		batch, err := e.slate.GetScheduledActions(ctx, aids[start:end])
		if err != nil {
			return errors.Wrap(err, "failed to fetch scheduled actions")
		}
		all = append(all, batch...)
	}

	managed := map[string]bool{}
	for _, code := range sa.AdmissionsActionCodes {
		managed[code] = true
	}

	if sa.AutolearnActionCodes {
		learned, err := e.learnActionCodes(ctx, all, managed)
		if err != nil {
			return err
		}
		for _, code := range learned {
			managed[code] = true
		}
	}

	byAID := map[string][]domain.ScheduledAction{}
	for _, a := range all {
		if managed[a.Code] {
			byAID[a.AID] = append(byAID[a.AID], a)
		}
	}

	managedCodes := make([]string, 0, len(managed))
	for code := range managed {
		managedCodes = append(managedCodes, code)
	}
	sort.Strings(managedCodes)

	for _, aid := range aids {
		targetID := targetByAID[aid]
		keep := make([]string, 0, len(byAID[aid]))
		for _, a := range byAID[aid] {
			if err := e.repo.UpsertAction(ctx, targetID, a); err != nil {
				return errors.Wrapf(err, "failed to upsert action %s for %s", a.Code, aid)
			}
			keep = append(keep, a.ActionID)
		}
		if err := e.repo.CleanupActions(ctx, targetID, managedCodes, keep); err != nil {
			return errors.Wrapf(err, "failed to clean up actions for %s", aid)
		}
	}

	return nil
}

// learnActionCodes adopts unmanaged codes seen in the CRM feed after
// confirming each one exists in the target system's action catalog, then
// persists the grown list so future runs manage them from the start.
func (e *SyncEngine) learnActionCodes(ctx context.Context, all []domain.ScheduledAction, managed map[string]bool) ([]string, error) {
	seen := map[string]bool{}
	var learned []string
	for _, a := range all {
		if managed[a.Code] || seen[a.Code] {
			continue
		}
		seen[a.Code] = true
		def, err := e.repo.GetActionDefinition(ctx, a.Code)
		if err != nil {
			e.logger.Warn("skipping unknown action code", zap.String("code", a.Code), zap.Error(err))
			continue
		}
		e.logger.Info("learned action code", zap.String("code", def.Code), zap.String("name", def.Name))
		learned = append(learned, a.Code)
	}
	if len(learned) == 0 {
		return nil, nil
	}

	sort.Strings(learned)
	e.cfg.Sync.ScheduledActions.AdmissionsActionCodes = append(
		e.cfg.Sync.ScheduledActions.AdmissionsActionCodes, learned...)
	if err := config.Save(e.cfgPath, e.cfg); err != nil {
		return nil, errors.Wrap(err, "failed to persist learned action codes")
	}
	return learned, nil
}
