package fileindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/mediadupe/internal/model"
)

// RecordTransaction appends tx to the transaction log (spec.md §4.1). The
// log is append-only with monotonic ids; the insert runs inside this
// package's withRetry loop so a conflict is retried, never silently dropped,
// and the row is committed before this call returns.
func (fi *FileIndex) RecordTransaction(ctx context.Context, tx model.MergeTransaction) (int64, error) {
	removed, err := json.Marshal(tx.RemovedFileIDs)
	if err != nil {
		return 0, fmt.Errorf("fileindex: encoding removed file ids: %w", err)
	}

	var id int64
	err = withRetry(ctx, func() error {
		res, err := fi.db.ExecContext(ctx, `
			INSERT INTO transactions (group_id, keeper_file_id, removed_file_ids, created_at, undo_deadline, metadata_snapshot, state, moved_to_trash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, tx.GroupID, tx.KeeperFileID.String(), string(removed), tx.CreatedAt.Unix(), tx.UndoDeadline.Unix(),
			tx.MetadataSnapshotJSON, tx.State.String(), boolToInt(tx.MovedToTrash))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fileindex: record_transaction: %w", err)
	}
	return id, nil
}

// UndoLastTransaction atomically marks the newest committed transaction
// eligible under Config.UndoDepth as undone and returns it (spec.md §4.1,
// §9 open-question resolution: undoable iff committed, within undoDeadline,
// and within the newest UndoDepth committed transactions).
func (fi *FileIndex) UndoLastTransaction(ctx context.Context) (*model.MergeTransaction, error) {
	var result *model.MergeTransaction

	err := withRetry(ctx, func() error {
		tx, err := fi.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, group_id, keeper_file_id, removed_file_ids, created_at, undo_deadline, metadata_snapshot, state, moved_to_trash
			FROM transactions WHERE state = 'committed' ORDER BY id DESC LIMIT ?`, fi.cfg.UndoDepth)
		if err != nil {
			return err
		}

		var candidates []model.MergeTransaction
		for rows.Next() {
			mt, scanErr := scanTransaction(rows)
			if scanErr != nil {
				rows.Close()
				return scanErr
			}
			candidates = append(candidates, mt)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(candidates) == 0 {
			return nil
		}

		now := time.Now()
		for _, mt := range candidates {
			if now.After(mt.UndoDeadline) {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE transactions SET state = 'undone' WHERE id = ? AND state = 'committed'`, mt.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				continue // raced with another undo; try the next candidate
			}
			mt.State = model.TxUndone
			result = &mt
			break
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("fileindex: undo_last_transaction: %w", err)
	}
	return result, nil
}

func scanTransaction(rows *sql.Rows) (model.MergeTransaction, error) {
	var (
		mt                      model.MergeTransaction
		keeperStr, removedJSON  string
		createdAt, undoDeadline int64
		stateStr                string
		movedToTrash            int
	)
	if err := rows.Scan(&mt.ID, &mt.GroupID, &keeperStr, &removedJSON, &createdAt, &undoDeadline,
		&mt.MetadataSnapshotJSON, &stateStr, &movedToTrash); err != nil {
		return model.MergeTransaction{}, fmt.Errorf("fileindex: scanning transaction: %w", err)
	}
	mt.KeeperFileID = uuid.MustParse(keeperStr)
	mt.CreatedAt = time.Unix(createdAt, 0).UTC()
	mt.UndoDeadline = time.Unix(undoDeadline, 0).UTC()
	mt.MovedToTrash = movedToTrash != 0
	mt.State = parseTxState(stateStr)
	_ = json.Unmarshal([]byte(removedJSON), &mt.RemovedFileIDs)
	return mt, nil
}

func parseTxState(s string) model.TransactionState {
	switch s {
	case "undone":
		return model.TxUndone
	case "failed":
		return model.TxFailed
	default:
		return model.TxCommitted
	}
}

// LatestTransaction returns the most recently recorded transaction, if any —
// used by MergeExecutor to validate undo preconditions before mutating.
func (fi *FileIndex) LatestTransaction(ctx context.Context) (*model.MergeTransaction, error) {
	row := fi.db.QueryRowContext(ctx, `
		SELECT id, group_id, keeper_file_id, removed_file_ids, created_at, undo_deadline, metadata_snapshot, state, moved_to_trash
		FROM transactions ORDER BY id DESC LIMIT 1`)

	var (
		mt                      model.MergeTransaction
		keeperStr, removedJSON  string
		createdAt, undoDeadline int64
		stateStr                string
		movedToTrash            int
	)
	err := row.Scan(&mt.ID, &mt.GroupID, &keeperStr, &removedJSON, &createdAt, &undoDeadline,
		&mt.MetadataSnapshotJSON, &stateStr, &movedToTrash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fileindex: latest_transaction: %w", err)
	}
	mt.KeeperFileID = uuid.MustParse(keeperStr)
	mt.CreatedAt = time.Unix(createdAt, 0).UTC()
	mt.UndoDeadline = time.Unix(undoDeadline, 0).UTC()
	mt.MovedToTrash = movedToTrash != 0
	mt.State = parseTxState(stateStr)
	_ = json.Unmarshal([]byte(removedJSON), &mt.RemovedFileIDs)
	return &mt, nil
}

// SaveGroup upserts a DuplicateGroup and its members, recording lifecycle
// transitions (spec.md §4.6 state machine: "Transitions are recorded in
// FileIndex").
func (fi *FileIndex) SaveGroup(ctx context.Context, g model.DuplicateGroup) error {
	rationale, err := json.Marshal(g.Rationale)
	if err != nil {
		return fmt.Errorf("fileindex: encoding rationale: %w", err)
	}

	return withRetry(ctx, func() error {
		tx, err := fi.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO duplicate_groups (id, media_class, confidence, rationale, incomplete, state, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				media_class = excluded.media_class,
				confidence = excluded.confidence,
				rationale = excluded.rationale,
				incomplete = excluded.incomplete,
				state = excluded.state
		`, g.ID, g.MediaClass.String(), g.Confidence, string(rationale), boolToInt(g.Incomplete), g.State.String(), time.Now().Unix())
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, g.ID); err != nil {
			return err
		}

		for _, m := range g.Members {
			signals, err := json.Marshal(m.Signals)
			if err != nil {
				return err
			}
			penalties, err := json.Marshal(m.Penalties)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO group_members (group_id, file_id, confidence, signals, penalties, keeper_suggestion)
				VALUES (?, ?, ?, ?, ?, ?)
			`, g.ID, m.FileID.String(), m.Confidence, string(signals), string(penalties), boolToInt(m.KeeperSuggestion)); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// SetGroupState transitions a group's lifecycle state in place.
func (fi *FileIndex) SetGroupState(ctx context.Context, groupID string, state model.GroupState) error {
	return withRetry(ctx, func() error {
		_, err := fi.db.ExecContext(ctx, `UPDATE duplicate_groups SET state = ? WHERE id = ?`, state.String(), groupID)
		return err
	})
}

// ListGroupsByState returns every persisted DuplicateGroup (with members) in
// the given lifecycle state, ordered by id for deterministic CLI output.
// Used by the plan/merge CLI commands to discover groups awaiting a merge
// plan (spec.md §4.6 state machine: Complete groups are plan candidates).
func (fi *FileIndex) ListGroupsByState(ctx context.Context, state model.GroupState) ([]model.DuplicateGroup, error) {
	rows, err := fi.db.QueryContext(ctx, `
		SELECT id, media_class, confidence, rationale, incomplete, state
		FROM duplicate_groups WHERE state = ? ORDER BY id`, state.String())
	if err != nil {
		return nil, fmt.Errorf("fileindex: list_groups_by_state: %w", err)
	}
	defer rows.Close()

	var groups []model.DuplicateGroup
	for rows.Next() {
		var g model.DuplicateGroup
		var mediaClass, rationale, stateStr string
		var incomplete int
		if err := rows.Scan(&g.ID, &mediaClass, &g.Confidence, &rationale, &incomplete, &stateStr); err != nil {
			return nil, fmt.Errorf("fileindex: scanning group: %w", err)
		}
		g.MediaClass = parseMediaClass(mediaClass)
		g.Incomplete = incomplete != 0
		g.State = parseGroupState(stateStr)
		_ = json.Unmarshal([]byte(rationale), &g.Rationale)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fileindex: list_groups_by_state: %w", err)
	}

	for i := range groups {
		members, err := fi.groupMembers(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Members = members
	}
	return groups, nil
}

func (fi *FileIndex) groupMembers(ctx context.Context, groupID string) ([]model.GroupMember, error) {
	rows, err := fi.db.QueryContext(ctx, `
		SELECT file_id, confidence, signals, penalties, keeper_suggestion
		FROM group_members WHERE group_id = ? ORDER BY file_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("fileindex: group_members: %w", err)
	}
	defer rows.Close()

	var members []model.GroupMember
	for rows.Next() {
		var gm model.GroupMember
		var fileIDStr, signals, penalties string
		var keeperSuggestion int
		if err := rows.Scan(&fileIDStr, &gm.Confidence, &signals, &penalties, &keeperSuggestion); err != nil {
			return nil, fmt.Errorf("fileindex: scanning group member: %w", err)
		}
		gm.FileID = uuid.MustParse(fileIDStr)
		gm.KeeperSuggestion = keeperSuggestion != 0
		_ = json.Unmarshal([]byte(signals), &gm.Signals)
		_ = json.Unmarshal([]byte(penalties), &gm.Penalties)
		members = append(members, gm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fileindex: group_members: %w", err)
	}
	return members, nil
}

func parseGroupState(s string) model.GroupState {
	switch s {
	case "Open":
		return model.GroupOpen
	case "Planned":
		return model.GroupPlanned
	case "Abandoned":
		return model.GroupAbandoned
	case "Merged":
		return model.GroupMerged
	case "Undone":
		return model.GroupUndone
	default:
		return model.GroupComplete
	}
}
