// Package s3 provides kv.Store implementations on Amazon Web Services.
//
// Store keeps one S3 object per key. It suits large record bodies but cannot
// write several keys atomically.
//
// DynamoStore keeps one DynamoDB item per key and writes every Set and
// Remove of up to 100 keys in a single transaction, so an upsert of the
// record index together with its bodies is all-or-nothing.
//
// Create the DynamoDB table with:
//
//	aws dynamodb create-table \
//	  --table-name recordkv \
//	  --attribute-definitions AttributeName=k,AttributeType=S \
//	  --key-schema AttributeName=k,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package s3
