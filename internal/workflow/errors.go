package workflow

import "errors"

// Ошибки конвейера.
var (
	// ErrNotFound — заказ, машина или строка не найдены.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — операция невозможна в текущем статусе.
	ErrInvalidState = errors.New("invalid state")

	// ErrSequence — нарушен порядок конвейера: предыдущий этап или
	// машина с меньшим порядком ещё не завершены.
	ErrSequence = errors.New("pipeline sequence violation")

	// ErrForbidden — оператор не привязан к машине, не назначен на неё
	// или не имеет нужной роли.
	ErrForbidden = errors.New("operator not allowed")

	// ErrConflict — конкурентный запрос успел изменить статус первым.
	ErrConflict = errors.New("concurrent state change")

	// ErrEmptyOutput — завершение машины без единой производственной строки.
	ErrEmptyOutput = errors.New("no production rows")

	// ErrValidation — структурно некорректный вход (план, батч строк).
	ErrValidation = errors.New("validation failed")
)
