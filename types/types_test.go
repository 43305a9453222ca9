package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseMessage_JSON(t *testing.T) {
	tests := []struct {
		name string
		msg  ResponseMessage
		want string
	}{
		{"tts ok", TTSOK("QUJD"), `{"cmd":"tts","ok":true,"status":200,"audioContent":"QUJD"}`},
		{"no speech keeps null audio", TTSNoSpeech(), `{"cmd":"tts","ok":false,"status":500,"audioContent":null,"message":"No speech?","toastType":"info","toastMessage":"No speech?"}`},
		{"error", Error(), `{"cmd":"error","ok":false,"status":500,"message":"error","toastType":"error","toastMessage":"error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestCommand_Decode(t *testing.T) {
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(`{"cmd":"tts","data":{"text":"hello"}}`), &cmd))
	assert.Equal(t, CmdTTS, cmd.Cmd)

	var data TTSData
	require.NoError(t, json.Unmarshal(cmd.Data, &data))
	require.NotNil(t, data.Text)
	assert.Equal(t, "hello", *data.Text)
}
