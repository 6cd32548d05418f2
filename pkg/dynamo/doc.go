// Package dynamo batches record writes to a DynamoDB table through
// BatchWriteItem.
//
// Records are plain maps. Before a record is queued its primary key is
// derived if missing, every float is converted to an exact decimal (DynamoDB
// refuses binary floats) and the result is wrapped in a PutRequest. Items the
// service reports as unprocessed are written one by one with PutItem.
//
// # Usage
//
//	d, err := dynamo.New(client, dynamo.DefaultConfig("orders", "OrderId"),
//	    dispatch.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	for _, rec := range records {
//	    if err := d.Submit(ctx, rec); err != nil {
//	        return err
//	    }
//	}
//	d.Flush(ctx)
package dynamo
