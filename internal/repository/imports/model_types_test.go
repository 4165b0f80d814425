package importitems

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelTypeFor(t *testing.T) {
	mt, ok := ModelTypeFor("deposits")
	assert.True(t, ok)
	assert.Equal(t, ModelTypeDeposits, mt)

	_, ok = ModelTypeFor("debtors")
	assert.False(t, ok)
}

func TestRecordKey(t *testing.T) {
	hex := "65a1b2c3d4e5f60718293a4b"
	_, isString := recordKey(hex).(string)
	assert.False(t, isString)
	assert.Equal(t, "upload-7", recordKey("upload-7"))
}

func TestLogMongoWithoutConnectionIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		LogMongo(t.Context(), nil, nil, LogParams{ModelType: ModelTypeDeposits, Status: ItemDone})
	})
}
