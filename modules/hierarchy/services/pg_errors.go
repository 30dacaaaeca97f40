package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, leadership.ErrNodeNotFound) {
		return newServiceError(http.StatusNotFound, CodeNotFound, "node not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		return newServiceError(http.StatusConflict, CodeConflict, "node already exists", err)
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		if pgErr.ConstraintName == "leadership_nodes_supervisor_fk" {
			return newServiceError(http.StatusNotFound, CodeNotFound, "supervisor not found", err)
		}
		return newServiceError(http.StatusUnprocessableEntity, CodeNotFound, "referenced row not found", err)
	case "23514": // check_violation
		recordWriteConflict("check")
		switch pgErr.ConstraintName {
		case "leadership_nodes_root_no_supervisor":
			return newServiceError(http.StatusUnprocessableEntity, CodeRootMustHaveNoSupervisor, "district supervisor must have no supervisor", err)
		case "leadership_nodes_not_self_supervised":
			return newServiceError(http.StatusUnprocessableEntity, CodeCycleDetected, "node cannot supervise itself", err)
		default:
			return newServiceError(http.StatusUnprocessableEntity, CodeInvalidBody, "check constraint violated", err)
		}
	case "40001", "40P01": // serialization_failure, deadlock_detected
		recordWriteConflict("serialization")
		return newServiceError(http.StatusConflict, CodeConflict, "concurrent update, retry the request", err)
	default:
		return newServiceError(http.StatusInternalServerError, CodeInternal, fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}

func mapPgError(err error) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return mapPgErrorToServiceError(err)
}
