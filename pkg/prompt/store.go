// ABOUTME: Prompt store implementation for conversation management
// ABOUTME: Handles message storage and conversation retrieval

package prompt

import (
	"fmt"
	"time"

	"github.com/reconbug/treekv/pkg/keyspace"
	"github.com/reconbug/treekv/pkg/storage"
)

// Namespaces for the six KeySpaces this store keeps inside one shared
// Tree: conversations and messages, plus four secondary indexes.
const (
	conversationKeySpaceName = "prompt_conversations"
	messageKeySpaceName      = "prompt_messages"
	convUserKeySpaceName     = "prompt_conversations_by_user"
	convTimeKeySpaceName     = "prompt_conversations_by_time"
	convTagKeySpaceName      = "prompt_conversations_by_tag"
	msgConvKeySpaceName      = "prompt_messages_by_conversation"
)

func encodeFields(fields ...string) []byte {
	vals := make([]storage.Value, len(fields))
	for i, f := range fields {
		vals[i] = storage.NewBytesValue([]byte(f))
	}
	return storage.EncodeValues(vals)
}

func conversationKeyCodec() keyspace.KeyCodec[string] {
	return keyspace.StringKeyCodec()
}

func conversationValueCodec() keyspace.ValueCodec[*Conversation] {
	return keyspace.ValueCodec[*Conversation]{
		SerializeValue: func(c *Conversation) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(c.ConversationID)),
				storage.NewBytesValue([]byte(c.UserID)),
				storage.NewBytesValue([]byte(c.Title)),
				storage.NewTimeValue(c.StartedAt),
				storage.NewTimeValue(c.LastMessageAt),
				storage.NewInt64Value(int64(c.MessageCount)),
				storage.NewBytesValue(encodeStringArray(c.Tags)),
				storage.NewBytesValue(encodeMetadata(c.Metadata)),
			})
		},
		DeserializeValue: func(b []byte) (*Conversation, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil {
				return nil, err
			}
			return parseConversationVals(vals)
		},
	}
}

func messageValueCodec() keyspace.ValueCodec[*Message] {
	return keyspace.ValueCodec[*Message]{
		SerializeValue: func(m *Message) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(m.MessageID)),
				storage.NewBytesValue([]byte(m.ConversationID)),
				storage.NewBytesValue([]byte(m.Role)),
				storage.NewBytesValue([]byte(m.Content)),
				storage.NewTimeValue(m.Timestamp),
				storage.NewBytesValue(encodeMetadata(m.Metadata)),
			})
		},
		DeserializeValue: func(b []byte) (*Message, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil {
				return nil, err
			}
			return parseMessageVals(vals)
		},
	}
}

// convUserKey indexes conversations by (userID, startedAt, conversationID).
type convUserKey struct {
	UserID         string
	StartedAt      time.Time
	ConversationID string
}

func convUserKeyCodec() keyspace.KeyCodec[convUserKey] {
	return keyspace.KeyCodec[convUserKey]{
		SerializeKey: func(k convUserKey) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(k.UserID)),
				storage.NewTimeValue(k.StartedAt),
				storage.NewBytesValue([]byte(k.ConversationID)),
			})
		},
		DeserializeKey: func(b []byte) (convUserKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return convUserKey{}, fmt.Errorf("prompt: bad user-index key: %w", err)
			}
			return convUserKey{
				UserID:         string(vals[0].Str),
				StartedAt:      vals[1].Time,
				ConversationID: string(vals[2].Str),
			}, nil
		},
	}
}

// convTimeKey indexes conversations by (startedAt, conversationID).
type convTimeKey struct {
	StartedAt      time.Time
	ConversationID string
}

func convTimeKeyCodec() keyspace.KeyCodec[convTimeKey] {
	return keyspace.KeyCodec[convTimeKey]{
		SerializeKey: func(k convTimeKey) []byte {
			return storage.EncodeValues([]storage.Value{storage.NewTimeValue(k.StartedAt), storage.NewBytesValue([]byte(k.ConversationID))})
		},
		DeserializeKey: func(b []byte) (convTimeKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 2 {
				return convTimeKey{}, fmt.Errorf("prompt: bad time-index key: %w", err)
			}
			return convTimeKey{StartedAt: vals[0].Time, ConversationID: string(vals[1].Str)}, nil
		},
	}
}

// convTagKey indexes conversations by (tag, conversationID).
type convTagKey struct {
	Tag            string
	ConversationID string
}

func convTagKeyCodec() keyspace.KeyCodec[convTagKey] {
	return keyspace.KeyCodec[convTagKey]{
		SerializeKey: func(k convTagKey) []byte {
			return encodeFields(k.Tag, k.ConversationID)
		},
		DeserializeKey: func(b []byte) (convTagKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 2 {
				return convTagKey{}, fmt.Errorf("prompt: bad tag-index key: %w", err)
			}
			return convTagKey{Tag: string(vals[0].Str), ConversationID: string(vals[1].Str)}, nil
		},
	}
}

// msgConvKey indexes messages by (conversationID, timestamp, messageID),
// keeping a conversation's messages in chronological order.
type msgConvKey struct {
	ConversationID string
	Timestamp      time.Time
	MessageID      string
}

func msgConvKeyCodec() keyspace.KeyCodec[msgConvKey] {
	return keyspace.KeyCodec[msgConvKey]{
		SerializeKey: func(k msgConvKey) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(k.ConversationID)),
				storage.NewTimeValue(k.Timestamp),
				storage.NewBytesValue([]byte(k.MessageID)),
			})
		},
		DeserializeKey: func(b []byte) (msgConvKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return msgConvKey{}, fmt.Errorf("prompt: bad message-index key: %w", err)
			}
			return msgConvKey{
				ConversationID: string(vals[0].Str),
				Timestamp:      vals[1].Time,
				MessageID:      string(vals[2].Str),
			}, nil
		},
	}
}

func msgConvPrefixBytes(conversationID string) []byte {
	return encodeFields(conversationID)
}

// PromptStore manages conversations and messages atop six disjoint
// KeySpaces sharing one keyspace.Tree.
type PromptStore struct {
	conversationKS keyspace.KeySpace[string, *Conversation]
	messageKS      keyspace.KeySpace[string, *Message]
	convUserKS     keyspace.KeySpace[convUserKey, []byte]
	convTimeKS     keyspace.KeySpace[convTimeKey, []byte]
	convTagKS      keyspace.KeySpace[convTagKey, []byte]
	msgConvKS      keyspace.KeySpace[msgConvKey, []byte]

	conversations keyspace.View[string, *Conversation]
	messages      keyspace.View[string, *Message]
	byUser        keyspace.View[convUserKey, []byte]
	byTime        keyspace.View[convTimeKey, []byte]
	byTag         keyspace.View[convTagKey, []byte]
	byConv        keyspace.View[msgConvKey, []byte]
}

// NewPromptStore binds a PromptStore to tree.
func NewPromptStore(tree *keyspace.Tree) *PromptStore {
	conversationKS := keyspace.NewKeySpace[string, *Conversation](conversationKeySpaceName, conversationKeyCodec(), conversationValueCodec())
	messageKS := keyspace.NewKeySpace[string, *Message](messageKeySpaceName, keyspace.StringKeyCodec(), messageValueCodec())
	convUserKS := keyspace.NewKeySpace[convUserKey, []byte](convUserKeySpaceName, convUserKeyCodec(), keyspace.BytesValueCodec())
	convTimeKS := keyspace.NewKeySpace[convTimeKey, []byte](convTimeKeySpaceName, convTimeKeyCodec(), keyspace.BytesValueCodec())
	convTagKS := keyspace.NewKeySpace[convTagKey, []byte](convTagKeySpaceName, convTagKeyCodec(), keyspace.BytesValueCodec())
	msgConvKS := keyspace.NewKeySpace[msgConvKey, []byte](msgConvKeySpaceName, msgConvKeyCodec(), keyspace.BytesValueCodec())

	return &PromptStore{
		conversationKS: conversationKS,
		messageKS:      messageKS,
		convUserKS:     convUserKS,
		convTimeKS:     convTimeKS,
		convTagKS:      convTagKS,
		msgConvKS:      msgConvKS,
		conversations:  keyspace.KeySpaceOf(tree, conversationKS),
		messages:       keyspace.KeySpaceOf(tree, messageKS),
		byUser:         keyspace.KeySpaceOf(tree, convUserKS),
		byTime:         keyspace.KeySpaceOf(tree, convTimeKS),
		byTag:          keyspace.KeySpaceOf(tree, convTagKS),
		byConv:         keyspace.KeySpaceOf(tree, msgConvKS),
	}
}

// CreateConversation stores a new conversation and its indexes.
func (ps *PromptStore) CreateConversation(conv *Conversation) error {
	tree := ps.conversations.Tree()

	_, err := keyspace.Txn(tree, true, func(txt *keyspace.TxTree) (struct{}, error) {
		conversations := keyspace.TxKeySpaceOf(txt, ps.conversationKS)
		byUser := keyspace.TxKeySpaceOf(txt, ps.convUserKS)
		byTime := keyspace.TxKeySpaceOf(txt, ps.convTimeKS)
		byTag := keyspace.TxKeySpaceOf(txt, ps.convTagKS)

		conversations.Insert(conv.ConversationID, conv)

		byUser.Insert(convUserKey{
			UserID:         conv.UserID,
			StartedAt:      conv.StartedAt,
			ConversationID: conv.ConversationID,
		}, []byte{})

		byTime.Insert(convTimeKey{
			StartedAt:      conv.StartedAt,
			ConversationID: conv.ConversationID,
		}, []byte{})

		for _, tag := range conv.Tags {
			byTag.Insert(convTagKey{Tag: tag, ConversationID: conv.ConversationID}, []byte{})
		}

		return struct{}{}, nil
	})
	return err
}

// AddMessage appends a message to a conversation, updating the
// conversation's last-message time and count atomically.
func (ps *PromptStore) AddMessage(msg *Message) error {
	tree := ps.conversations.Tree()

	_, err := keyspace.Txn(tree, true, func(txt *keyspace.TxTree) (struct{}, error) {
		messages := keyspace.TxKeySpaceOf(txt, ps.messageKS)
		byConv := keyspace.TxKeySpaceOf(txt, ps.msgConvKS)
		conversations := keyspace.TxKeySpaceOf(txt, ps.conversationKS)

		messages.Insert(msg.MessageID, msg)

		byConv.Insert(msgConvKey{
			ConversationID: msg.ConversationID,
			Timestamp:      msg.Timestamp,
			MessageID:      msg.MessageID,
		}, []byte{})

		conv, ok, gerr := conversations.Get(msg.ConversationID)
		if gerr == nil && ok {
			conv.LastMessageAt = msg.Timestamp
			conv.MessageCount++
			conversations.Insert(msg.ConversationID, conv)
		}

		return struct{}{}, nil
	})
	return err
}

// GetConversation retrieves a conversation by ID.
func (ps *PromptStore) GetConversation(conversationID string) (*Conversation, error) {
	conv, ok, err := ps.conversations.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", conversationID)
	}
	return conv, nil
}

// GetMessage retrieves a message by ID.
func (ps *PromptStore) GetMessage(messageID string) (*Message, error) {
	msg, ok, err := ps.messages.Get(messageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("message not found: %s", messageID)
	}
	return msg, nil
}

// GetMessages retrieves all messages for a conversation in chronological order.
func (ps *PromptStore) GetMessages(conversationID string) ([]*Message, error) {
	var messages []*Message

	err := ps.byConv.ScanRawPrefix(msgConvPrefixBytes(conversationID), func(rawKeySuffix []byte, _ []byte) bool {
		key, derr := msgConvKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		msg, gerr := ps.GetMessage(key.MessageID)
		if gerr == nil {
			messages = append(messages, msg)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// GetConversationWithMessages retrieves a conversation with all its messages.
func (ps *PromptStore) GetConversationWithMessages(conversationID string) (*ConversationWithMessages, error) {
	conv, err := ps.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := ps.GetMessages(conversationID)
	if err != nil {
		return nil, err
	}

	return &ConversationWithMessages{
		Conversation: conv,
		Messages:     messages,
	}, nil
}

// ListConversationsByUser retrieves conversations for a user.
func (ps *PromptStore) ListConversationsByUser(userID string, limit int) ([]*Conversation, error) {
	var conversations []*Conversation
	count := 0

	err := ps.byUser.ScanRawPrefix(encodeFields(userID), func(rawKeySuffix []byte, _ []byte) bool {
		if limit > 0 && count >= limit {
			return false
		}

		key, derr := convUserKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		conv, gerr := ps.GetConversation(key.ConversationID)
		if gerr == nil {
			conversations = append(conversations, conv)
			count++
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return conversations, nil
}

// ListConversationsByTag retrieves conversations with a specific tag.
func (ps *PromptStore) ListConversationsByTag(tag string, limit int) ([]*Conversation, error) {
	var conversations []*Conversation
	count := 0

	err := ps.byTag.ScanRawPrefix(encodeFields(tag), func(rawKeySuffix []byte, _ []byte) bool {
		if limit > 0 && count >= limit {
			return false
		}

		key, derr := convTagKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		conv, gerr := ps.GetConversation(key.ConversationID)
		if gerr == nil {
			conversations = append(conversations, conv)
			count++
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return conversations, nil
}

// DeleteConversation removes a conversation, its messages, and their
// indexes, all in one transaction.
func (ps *PromptStore) DeleteConversation(conversationID string) error {
	conv, err := ps.GetConversation(conversationID)
	if err != nil {
		return err
	}

	messages, err := ps.GetMessages(conversationID)
	if err != nil {
		return err
	}

	tree := ps.conversations.Tree()
	_, txErr := keyspace.Txn(tree, true, func(txt *keyspace.TxTree) (struct{}, error) {
		conversations := keyspace.TxKeySpaceOf(txt, ps.conversationKS)
		messagesKS := keyspace.TxKeySpaceOf(txt, ps.messageKS)
		byConv := keyspace.TxKeySpaceOf(txt, ps.msgConvKS)
		byUser := keyspace.TxKeySpaceOf(txt, ps.convUserKS)
		byTime := keyspace.TxKeySpaceOf(txt, ps.convTimeKS)
		byTag := keyspace.TxKeySpaceOf(txt, ps.convTagKS)

		for _, msg := range messages {
			messagesKS.Remove(msg.MessageID)
			byConv.Remove(msgConvKey{
				ConversationID: msg.ConversationID,
				Timestamp:      msg.Timestamp,
				MessageID:      msg.MessageID,
			})
		}

		conversations.Remove(conversationID)
		byUser.Remove(convUserKey{
			UserID:         conv.UserID,
			StartedAt:      conv.StartedAt,
			ConversationID: conversationID,
		})
		byTime.Remove(convTimeKey{StartedAt: conv.StartedAt, ConversationID: conversationID})
		for _, tag := range conv.Tags {
			byTag.Remove(convTagKey{Tag: tag, ConversationID: conversationID})
		}

		return struct{}{}, nil
	})
	return txErr
}

// Helper functions

func parseConversationVals(vals []storage.Value) (*Conversation, error) {
	if len(vals) < 8 {
		return nil, fmt.Errorf("incomplete conversation data")
	}

	tags, _ := decodeStringArray(vals[6].Str)
	metadata, _ := decodeMetadata(vals[7].Str)

	return &Conversation{
		ConversationID: string(vals[0].Str),
		UserID:         string(vals[1].Str),
		Title:          string(vals[2].Str),
		StartedAt:      vals[3].Time,
		LastMessageAt:  vals[4].Time,
		MessageCount:   int(vals[5].I64),
		Tags:           tags,
		Metadata:       metadata,
	}, nil
}

func parseMessageVals(vals []storage.Value) (*Message, error) {
	if len(vals) < 6 {
		return nil, fmt.Errorf("incomplete message data")
	}

	metadata, _ := decodeMetadata(vals[5].Str)

	return &Message{
		MessageID:      string(vals[0].Str),
		ConversationID: string(vals[1].Str),
		Role:           string(vals[2].Str),
		Content:        string(vals[3].Str),
		Timestamp:      vals[4].Time,
		Metadata:       metadata,
	}, nil
}

func encodeStringArray(arr []string) []byte {
	if len(arr) == 0 {
		return []byte{}
	}

	result := []byte{byte(len(arr))}
	for _, s := range arr {
		result = append(result, byte(len(s)))
		result = append(result, []byte(s)...)
	}
	return result
}

func decodeStringArray(data []byte) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}

	pos := 0
	count := int(data[pos])
	pos++

	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete string array")
		}

		length := int(data[pos])
		pos++

		if pos+length > len(data) {
			return nil, fmt.Errorf("incomplete string at pos %d", pos)
		}

		result = append(result, string(data[pos:pos+length]))
		pos += length
	}

	return result, nil
}

func encodeMetadata(m map[string]string) []byte {
	if len(m) == 0 {
		return []byte{}
	}

	result := []byte{byte(len(m))}
	for k, v := range m {
		result = append(result, byte(len(k)))
		result = append(result, []byte(k)...)
		result = append(result, byte(len(v)))
		result = append(result, []byte(v)...)
	}
	return result
}

func decodeMetadata(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	pos := 0
	count := int(data[pos])
	pos++

	result := make(map[string]string)
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete metadata")
		}

		// Read key
		keyLen := int(data[pos])
		pos++
		if pos+keyLen > len(data) {
			return nil, fmt.Errorf("incomplete key at pos %d", pos)
		}
		key := string(data[pos : pos+keyLen])
		pos += keyLen

		// Read value
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete value for key %s", key)
		}
		valLen := int(data[pos])
		pos++
		if pos+valLen > len(data) {
			return nil, fmt.Errorf("incomplete value at pos %d", pos)
		}
		val := string(data[pos : pos+valLen])
		pos += valLen

		result[key] = val
	}

	return result, nil
}
