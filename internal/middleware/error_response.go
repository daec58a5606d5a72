package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/portal/internal/model"
)

// WriteEnvelope はエンベロープをJSONで書き込む。
// エラーエンベロープはキャッシュさせない。
func WriteEnvelope(w http.ResponseWriter, statusCode int, env *model.Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if env.Status != model.StatusOK {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(env)
}

// WriteErrorEnvelope は{status:"error",message}形式のエラーレスポンスを書き込む。
func WriteErrorEnvelope(w http.ResponseWriter, statusCode int, message string) {
	WriteEnvelope(w, statusCode, model.NewErrorEnvelope(message))
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorEnvelope(w, http.StatusInternalServerError, "internal server error")
}
