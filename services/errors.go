package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrNotFound 图斑不存在
var ErrNotFound = errors.New("sector not found")

// ValidationError 输入不合法，操作未执行
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrNoUpdates 修改内容与当前值完全相同或为空
var ErrNoUpdates = &ValidationError{Message: "no updates provided"}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation 是否为输入校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransactionError 事务内的存储错误，事务已整体回滚
type TransactionError struct {
	Op         string
	Constraint string
	Err        error
}

func (e *TransactionError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: constraint %s violated: %v", e.Op, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// txError 校验错误和不存在原样返回，其余包装为 TransactionError
func txError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || IsValidation(err) {
		return err
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &TransactionError{Op: op, Constraint: constraintName(err), Err: err}
}

// constraintName 识别约束冲突：PostgreSQL 23 类错误码，SQLite SQLITE_CONSTRAINT
func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		if pgErr.ConstraintName != "" {
			return pgErr.ConstraintName
		}
		return pgErr.Code
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return liteErr.ExtendedCode.Error()
	}
	return ""
}

// IsConstraintViolation 是否为约束冲突导致的失败
func IsConstraintViolation(err error) bool {
	var te *TransactionError
	return errors.As(err, &te) && te.Constraint != ""
}
