package eventbus

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestShardFor_DeterministicForSameKey(t *testing.T) {
	a := shardFor("booking-123", numShards)
	b := shardFor("booking-123", numShards)
	assert.Equal(t, a, b, "the same partition key must always hash to the same shard")
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, numShards)
}

func TestShardFor_DistributesAcrossShards(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		key := "booking-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
		seen[shardFor(key, numShards)] = true
	}
	assert.Greater(t, len(seen), 1, "200 varied keys should not all land on one shard")
}

func TestRoutingKeyAndQueueName(t *testing.T) {
	assert.Equal(t, "payment.success.3", routingKey("payment.success", 3))
	assert.Equal(t, "payment.success.worker.3", queueName("payment.success", "worker", 3))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, int32(0), retryCount(nil))
	assert.Equal(t, int32(0), retryCount(amqp.Table{}))
	assert.Equal(t, int32(4), retryCount(amqp.Table{retryCountHdr: int32(4)}))
}
