// Package sl содержит вспомогательные функции для работы с логгером slog.
// Поля формируются единообразно во всех пакетах.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to approve receipt", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// UserID возвращает slog.Attr с идентификатором пользователя Telegram.
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}
