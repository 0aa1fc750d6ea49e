// Package model はドメインモデルを定義する。
package model

import "errors"

// 定義済みエラー種別。
// 各コンポーネントはこれらを%wでラップして返し、呼び出し側はerrors.Isで判定する。
var (
	// ErrInvalidParameters はリクエストの必須フィールドが欠けている、または不正な場合のエラー。
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrUnauthenticated は認証トークンが無い、検証に失敗した、
	// またはユーザーを解決できなかった場合のエラー。
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFoundOrForbidden は対象の記録が存在しない、または呼び出し元の所有物でない場合のエラー。
	// 両者は意図的に区別しない。
	ErrNotFoundOrForbidden = errors.New("item not found or not owned by caller")

	// ErrStoreUnavailable は永続化層の操作が完了できなかった場合のエラー。
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrVerificationFailed はIdPがトークンを拒否した場合のエラー。
	// 不正形式・署名不一致・期限切れ・subクレーム欠落のいずれも区別しない。
	ErrVerificationFailed = errors.New("identity verification failed")
)
