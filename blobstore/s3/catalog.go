package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/lingodb/blobstore"
)

// DDBClient is the subset of the DynamoDB API used by DDBCatalog.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// DDBCatalog is a blobstore.Catalog kept in a DynamoDB table. Every release
// is one item; a conditional write rejects a version that already exists, so
// concurrent publishers cannot overwrite each other.
//
// Table schema:
//   - Partition key: name (string)
//   - Sort key: version (number)
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name lingodb-releases \
//	  --attribute-definitions AttributeName=name,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=name,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCatalog struct {
	client DDBClient
	table  string
}

var _ blobstore.Catalog = (*DDBCatalog)(nil)

// NewDDBCatalog returns a catalog stored in table.
func NewDDBCatalog(client DDBClient, table string) *DDBCatalog {
	return &DDBCatalog{client: client, table: table}
}

const (
	attrName      = "name"
	attrVersion   = "version"
	attrKey       = "blob_key"
	attrSize      = "size"
	attrChecksum  = "checksum"
	attrCreatedAt = "created_at"
)

// Latest returns the release with the highest version.
func (c *DDBCatalog) Latest(ctx context.Context, name string) (blobstore.Release, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(c.table),
		KeyConditionExpression:   aws.String("#n = :name"),
		ExpressionAttributeNames: map[string]string{"#n": attrName},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name": &types.AttributeValueMemberS{Value: name},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return blobstore.Release{}, fmt.Errorf("query %s: %w", c.table, err)
	}
	if len(resp.Items) == 0 {
		return blobstore.Release{}, fmt.Errorf("release %q: %w", name, blobstore.ErrNotFound)
	}
	return decodeRelease(resp.Items[0])
}

// Commit writes r unless its version exists or is not newer than the
// latest release.
func (c *DDBCatalog) Commit(ctx context.Context, r blobstore.Release) error {
	if r.Name == "" || r.Key == "" {
		return errors.New("release needs a name and a key")
	}
	cur, err := c.Latest(ctx, r.Name)
	switch {
	case err == nil:
		if r.Version <= cur.Version {
			return fmt.Errorf("%w: version %d is not newer than %d", blobstore.ErrConflict, r.Version, cur.Version)
		}
	case !errors.Is(err, blobstore.ErrNotFound):
		return err
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.table),
		Item:                encodeRelease(r),
		ConditionExpression: aws.String("attribute_not_exists(#v)"),
		ExpressionAttributeNames: map[string]string{
			"#v": attrVersion,
		},
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return fmt.Errorf("%w: version %d of %q", blobstore.ErrConflict, r.Version, r.Name)
		}
		return fmt.Errorf("put %s: %w", c.table, err)
	}
	return nil
}

func encodeRelease(r blobstore.Release) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrName:      &types.AttributeValueMemberS{Value: r.Name},
		attrVersion:   &types.AttributeValueMemberN{Value: strconv.FormatUint(r.Version, 10)},
		attrKey:       &types.AttributeValueMemberS{Value: r.Key},
		attrSize:      &types.AttributeValueMemberN{Value: strconv.FormatInt(r.Size, 10)},
		attrChecksum:  &types.AttributeValueMemberN{Value: strconv.FormatUint(r.Checksum, 10)},
		attrCreatedAt: &types.AttributeValueMemberS{Value: r.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func decodeRelease(item map[string]types.AttributeValue) (blobstore.Release, error) {
	str := func(k string) (string, error) {
		v, ok := item[k].(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("release item: attribute %s is not a string", k)
		}
		return v.Value, nil
	}
	num := func(k string) (string, error) {
		v, ok := item[k].(*types.AttributeValueMemberN)
		if !ok {
			return "", fmt.Errorf("release item: attribute %s is not a number", k)
		}
		return v.Value, nil
	}

	var r blobstore.Release
	var err error
	var s string
	if r.Name, err = str(attrName); err != nil {
		return r, err
	}
	if r.Key, err = str(attrKey); err != nil {
		return r, err
	}
	if s, err = num(attrVersion); err != nil {
		return r, err
	}
	if r.Version, err = strconv.ParseUint(s, 10, 64); err != nil {
		return r, fmt.Errorf("release item: version: %w", err)
	}
	if s, err = num(attrSize); err != nil {
		return r, err
	}
	if r.Size, err = strconv.ParseInt(s, 10, 64); err != nil {
		return r, fmt.Errorf("release item: size: %w", err)
	}
	if s, err = num(attrChecksum); err != nil {
		return r, err
	}
	if r.Checksum, err = strconv.ParseUint(s, 10, 64); err != nil {
		return r, fmt.Errorf("release item: checksum: %w", err)
	}
	if s, err = str(attrCreatedAt); err != nil {
		return r, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, s); err != nil {
		return r, fmt.Errorf("release item: created_at: %w", err)
	}
	return r, nil
}
