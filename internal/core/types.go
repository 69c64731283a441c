package core

import "curvegraph/pkg/domain"

type (
	Identity     = domain.Identity
	Table        = domain.Table
	Record       = domain.Record
	Field        = domain.Field
	CurveRecord  = domain.CurveRecord
	InputRecord  = domain.InputRecord
	ModelRecord  = domain.ModelRecord
	Curve        = domain.Curve
	Input        = domain.Input
	Model        = domain.Model
	Snapshot     = domain.Snapshot
	SnapshotInfo = domain.SnapshotInfo
)

const (
	TableModels = domain.TableModels
	TableInputs = domain.TableInputs
	TableCurves = domain.TableCurves
)
