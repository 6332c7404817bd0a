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

	"rule-chatbot/internal/domain"
)

const (
	skPrefixExchange = "EXCHANGE#"
	ttlDuration      = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps a DynamoDB table holding chat transcripts.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the partition key grouping a session's exchanges.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// exchangeSK sorts exchanges chronologically; the ID breaks ties.
func exchangeSK(ts time.Time, id string) string {
	return skPrefixExchange + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

// NewExchange constructs an Exchange with PK/SK/TTL derived from the session and time.
func (c *Client) NewExchange(id, sessionID, utterance, normalized, rule, reply string) domain.Exchange {
	now := c.now().UTC()
	return domain.Exchange{
		PK:         sessionPK(sessionID),
		SK:         exchangeSK(now, id),
		ID:         id,
		SessionID:  sessionID,
		Utterance:  utterance,
		Normalized: normalized,
		Rule:       rule,
		Reply:      reply,
		CreatedAt:  now,
		TTL:        now.Add(ttlDuration).Unix(),
	}
}

// WriteExchange persists an exchange. Existing keys are never overwritten.
func (c *Client) WriteExchange(ctx context.Context, ex domain.Exchange) error {
	if ex.PK == "" || ex.SK == "" {
		return errors.New("repository: WriteExchange: PK and SK are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                exchangeItem(ex),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: WriteExchange: %w", err)
	}
	return nil
}

// SaveExchange builds and persists one exchange for a session.
func (c *Client) SaveExchange(ctx context.Context, id, sessionID, utterance, normalized, rule, reply string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: SaveExchange: session ID is required")
	}
	ex := c.NewExchange(id, sessionID, utterance, normalized, rule, reply)
	if err := c.WriteExchange(ctx, ex); err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: ex.PK},
		"SK":         &types.AttributeValueMemberS{Value: ex.SK},
		"exchangeId": &types.AttributeValueMemberS{Value: ex.ID},
		"sessionId":  &types.AttributeValueMemberS{Value: ex.SessionID},
		"utterance":  &types.AttributeValueMemberS{Value: ex.Utterance},
		"normalized": &types.AttributeValueMemberS{Value: ex.Normalized},
		"rule":       &types.AttributeValueMemberS{Value: ex.Rule},
		"reply":      &types.AttributeValueMemberS{Value: ex.Reply},
		"createdAt":  &types.AttributeValueMemberS{Value: ex.CreatedAt.Format(time.RFC3339Nano)},
		"ttl":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ex.TTL)},
	}
}
