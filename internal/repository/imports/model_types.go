package importitems

type ModelType string

const ModelTypeDeposits ModelType = "deposit_histories"

// importTypes maps an uploadable import type to the table its rows land in.
var importTypes = map[string]ModelType{
	"deposits": ModelTypeDeposits,
}

func ModelTypeFor(importType string) (ModelType, bool) {
	mt, ok := importTypes[importType]
	return mt, ok
}
