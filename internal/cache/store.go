// Package cache は読み取りが多いエンドポイントのためのキーバリューキャッシュを提供する。
//
// Storeはグローバルシングルトンではなく注入されるケイパビリティとして設計されており、
// テスト時には差し替え可能。キャッシュの失敗は呼び出し側でDBフォールバックに
// サイレントに縮退させることを想定している。
package cache

import "time"

// Store はキーバリューキャッシュのインターフェース。
type Store interface {
	// Get はキーに対応する値を返す。存在しない・期限切れの場合はok=falseを返す。
	Get(key string) (value []byte, ok bool)

	// Set は値をTTL付きで格納する。ttl<=0の場合はストアのデフォルトTTLを使用する。
	Set(key string, value []byte, ttl time.Duration)

	// Delete はキーを削除する。存在しないキーの削除はno-op。
	Delete(key string)

	// DeleteByPrefix は指定プレフィックスに一致する全キーを削除する。
	// ユーザー単位のビューをまとめて無効化するために使用する。
	DeleteByPrefix(prefix string)

	// Stop はバックグラウンドのクリーンアップを停止する。
	Stop()
}

// キーの命名規則。ユーザースコープのキーは "user:{id}:" プレフィックスで始め、
// 書き込み時にDeleteByPrefixでまとめて無効化できるようにする。

// KeyClassList は公開クラス一覧のキャッシュキーを返す。
func KeyClassList() string {
	return "classes:published"
}

// KeyClassDetail はクラス詳細（デッキ一覧付き）のキャッシュキーを返す。
func KeyClassDetail(classID string) string {
	return "class:" + classID
}

// KeyDeckCards はデッキのカード一覧のキャッシュキーを返す。
func KeyDeckCards(deckID string) string {
	return "deck:" + deckID + ":cards"
}

// UserPrefix はユーザースコープキーの共通プレフィックスを返す。
func UserPrefix(userID string) string {
	return "user:" + userID + ":"
}

// KeyUserClassProgress はユーザーのクラス別進捗サマリーのキャッシュキーを返す。
func KeyUserClassProgress(userID, classID string) string {
	return UserPrefix(userID) + "class:" + classID + ":progress"
}

// KeyUserBookmarks はユーザーのブックマーク一覧のキャッシュキーを返す。
func KeyUserBookmarks(userID string) string {
	return UserPrefix(userID) + "bookmarks"
}
