package usecase

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/admitsync/admitsync"
)

// upload pushes the run's results back to the CRM over the four writeback
// channels: the change-detected active channel, the unconditional passive
// channel, the school-match channel, and the financial-aid checklist.
func (e *SyncEngine) upload(ctx context.Context, records []*admitsync.Record, st *runState) error {
	ctx, span := tracer.Start(ctx, "SyncEngine.Upload")
	defer span.End()

	activeRows := e.activeRows(records)
	if len(activeRows) > 0 {
		if err := e.slate.PostRows(ctx, e.cfg.Slate.UploadActive.Endpoint, activeRows); err != nil {
			return errors.Wrap(err, "failed to upload status results")
		}
		e.logger.Info("uploaded status results", zap.Int("rows", len(activeRows)))
	}

	passiveRows := e.passiveRows(st.active)
	if len(passiveRows) > 0 {
		if err := e.slate.PostRows(ctx, e.cfg.Slate.UploadPassive.Endpoint, passiveRows); err != nil {
			return errors.Wrap(err, "failed to upload passive fields")
		}
	}

	if len(st.schools) > 0 {
		if err := e.slate.PostRows(ctx, e.cfg.Slate.UploadSchools, st.schools); err != nil {
			return errors.Wrap(err, "failed to upload school matches")
		}
	}

	if e.cfg.Sync.FAChecklist.Enabled && len(st.checklist) > 0 {
		body := "AppID\tCode\tStatus\tDate\n" + strings.Join(st.checklist, "\n") + "\n"
		if err := e.slate.PostChecklist(ctx, e.cfg.Slate.UploadChecklist, body); err != nil {
			return errors.Wrap(err, "failed to upload financial aid checklist")
		}
	}

	return nil
}

// activeRows builds the change-detected writeback: a record is included when
// it errored or when any configured field moved away from its compare_
// shadow. Identical rows collapse to one so re-fetches of the same person do
// not double-post.
func (e *SyncEngine) activeRows(records []*admitsync.Record) []map[string]any {
	fields := e.activeFieldList()

	var rows []map[string]any
	for _, rec := range records {
		flagged, _ := rec.Get("error_flag").Bool()
		if !flagged && !changed(rec, fields) {
			continue
		}
		row := map[string]any{"aid": rec.Get("aid")}
		for _, f := range fields {
			row[f] = rec.Get(f)
		}
		row["error_flag"] = rec.Get("error_flag")
		row["error_message"] = rec.Get("error_message")
		if !containsRow(rows, row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// passiveRows builds the unconditional writeback, republished for every
// active applicant each run so the CRM always converges even if it missed an
// earlier post. Identical rows collapse to one, same as the active channel.
func (e *SyncEngine) passiveRows(active []*admitsync.Record) []map[string]any {
	var rows []map[string]any
	for _, rec := range active {
		row := map[string]any{"aid": rec.Get("aid")}
		for _, f := range e.cfg.Slate.UploadPassive.Fields {
			row[f] = rec.Get(f)
		}
		if !containsRow(rows, row) {
			rows = append(rows, row)
		}
	}
	return rows
}

func (e *SyncEngine) activeFieldList() []string {
	ua := e.cfg.Slate.UploadActive
	fields := make([]string, 0, len(ua.FieldsString)+len(ua.FieldsBool)+len(ua.FieldsInt))
	fields = append(fields, ua.FieldsString...)
	fields = append(fields, ua.FieldsBool...)
	fields = append(fields, ua.FieldsInt...)
	return fields
}

func changed(rec *admitsync.Record, fields []string) bool {
	for _, f := range fields {
		if !rec.Get(f).Equal(rec.Get("compare_" + f)) {
			return true
		}
	}
	return false
}

func containsRow(rows []map[string]any, row map[string]any) bool {
	for _, r := range rows {
		if rowsEqual(r, row) {
			return true
		}
	}
	return false
}

func rowsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		x, xok := av.(admitsync.Value)
		y, yok := bv.(admitsync.Value)
		if !xok || !yok || !x.Equal(y) {
			return false
		}
	}
	return true
}
