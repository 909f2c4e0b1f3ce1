package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessages struct {
	req  *larkIm.CreateMessageReq
	resp *larkIm.CreateMessageResp
	err  error
}

func (f *fakeMessages) Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error) {
	f.req = req
	return f.resp, f.err
}

func okResponse() *larkIm.CreateMessageResp {
	id := "om_123"
	return &larkIm.CreateMessageResp{Data: &larkIm.CreateMessageRespData{MessageId: &id}}
}

func TestMessenger_SendMessage(t *testing.T) {
	fake := &fakeMessages{resp: okResponse()}
	var sent *larkIm.CreateMessageReqBody
	m := &Messenger{
		api: fake,
		newRequest: func(body *larkIm.CreateMessageReqBody) *larkIm.CreateMessageReq {
			sent = body
			return openIDMessageRequest(body)
		},
		logger: zap.NewNop(),
	}

	err := m.SendMessage(context.Background(), "ou_abc", `Trip "Mumbai" needs approval`)
	require.NoError(t, err)

	require.NotNil(t, fake.req)
	require.NotNil(t, sent)
	assert.Equal(t, "ou_abc", *sent.ReceiveId)
	assert.Equal(t, "text", *sent.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*sent.Content), &content))
	assert.Equal(t, `Trip "Mumbai" needs approval`, content["text"])
}

func TestMessenger_SendMessageDefaultRequest(t *testing.T) {
	fake := &fakeMessages{resp: okResponse()}
	m := &Messenger{api: fake, logger: zap.NewNop()}

	require.NoError(t, m.SendMessage(context.Background(), "ou_abc", "hello"))
	assert.NotNil(t, fake.req)
}

func TestTextMessageBody(t *testing.T) {
	body, err := textMessageBody("ou_xyz", "line one\nline two")
	require.NoError(t, err)

	assert.Equal(t, "ou_xyz", *body.ReceiveId)
	assert.Equal(t, larkIm.MsgTypeText, *body.MsgType)
	assert.JSONEq(t, `{"text":"line one\nline two"}`, *body.Content)
}

func TestMessenger_SendMessageErrors(t *testing.T) {
	failed := &larkIm.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"}}

	tests := []struct {
		name    string
		openID  string
		content string
		fake    *fakeMessages
		wantErr string
	}{
		{"empty open id", "", "hi", &fakeMessages{resp: okResponse()}, "openID cannot be empty"},
		{"empty content", "ou_abc", "", &fakeMessages{resp: okResponse()}, "content cannot be empty"},
		{"transport failure", "ou_abc", "hi", &fakeMessages{err: errors.New("timeout")}, "timeout"},
		{"api failure", "ou_abc", "hi", &fakeMessages{resp: failed}, "code=230002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Messenger{api: tt.fake, logger: zap.NewNop()}
			err := m.SendMessage(context.Background(), tt.openID, tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(zap.NewNop())
	assert.NoError(t, s.SendMessage(context.Background(), "ou_abc", "hello"))
}
