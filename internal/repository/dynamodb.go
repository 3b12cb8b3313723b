// Package repository persists conversation transcripts and the message
// log. The DynamoDB store backs transcripts durably; the in-memory store
// serves local runs and the message log.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

const (
	pkPrefixSession = "SESSION#"
	skPrefixEntry   = "ENTRY#"
	ttlDuration     = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps one DynamoDB item per transcript entry under a
// session partition.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamoStore creates a DynamoDB-backed transcript store.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

func sessionPK(sessionKey string) string {
	return pkPrefixSession + sessionKey
}

// entrySK builds a sort key that orders entries chronologically. The
// sequence suffix keeps the two entries of one turn distinct even though
// they share a timestamp.
func entrySK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%04d", skPrefixEntry, ts.UTC().Format(time.RFC3339Nano), seq)
}

func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// GetHistory returns up to limit trailing transcript entries for a
// session, in chronological order.
func (s *DynamoStore) GetHistory(ctx context.Context, sessionKey string, limit int) ([]domain.HistoryEntry, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionKey)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixEntry},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	entries := make([]domain.HistoryEntry, 0, len(out.Items))
	for _, item := range out.Items {
		entry, err := itemToEntry(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		entries = append(entries, entry)
	}
	// Reverse to chronological order before handing to prompt assembly.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// AppendEntries writes one turn's entries in a single transaction so a
// user/assistant pair is never persisted partially.
func (s *DynamoStore) AppendEntries(ctx context.Context, sessionKey string, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	items := make([]types.TransactWriteItem, 0, len(entries))
	for i, entry := range entries {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.tableName),
				Item:                entryItem(sessionKey, entry, i),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}

	if _, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: AppendEntries: %w", err)
	}
	return nil
}

func entryItem(sessionKey string, entry domain.HistoryEntry, seq int) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionKey)},
		"SK":        &types.AttributeValueMemberS{Value: entrySK(entry.Timestamp, seq)},
		"role":      &types.AttributeValueMemberS{Value: entry.Role},
		"content":   &types.AttributeValueMemberS{Value: entry.Content},
		"timestamp": &types.AttributeValueMemberS{Value: entry.Timestamp.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
	}
	if entry.MessageID != "" {
		item["messageId"] = &types.AttributeValueMemberS{Value: entry.MessageID}
	}
	return item
}

func itemToEntry(item map[string]types.AttributeValue) (domain.HistoryEntry, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	messageID, _ := strAttr(item, "messageId") // absent on assistant entries

	var ts time.Time
	if raw, err := strAttr(item, "timestamp"); err == nil {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			ts = parsed
		}
	}

	return domain.HistoryEntry{
		Role:      role,
		Content:   content,
		Timestamp: ts,
		MessageID: messageID,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
