package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/xokvictor/polar-mcp/pkg/auth"
	"github.com/xokvictor/polar-mcp/pkg/polar"
)

// ErrorKind tags a failed tool execution so callers can handle each class
// exhaustively instead of inspecting message strings.
type ErrorKind int

const (
	// ErrBadArgument is a rejected invocation; no upstream call was made.
	ErrBadArgument ErrorKind = iota
	// ErrConfiguration is a missing credential or user id at the point of use.
	ErrConfiguration
	// ErrUpstream is a non-success response from the AccessLink API.
	ErrUpstream
	// ErrInternal is anything unexpected.
	ErrInternal
)

// Error is a failed tool execution.
type Error struct {
	Kind    ErrorKind
	Status  int // upstream HTTP status, for ErrUpstream
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Result is the uniform tool envelope: either a payload or an error, never
// both, never a raised fault. The calling protocol layer does not need to
// special-case exceptions versus data.
type Result struct {
	Payload any
	Err     *Error
}

func errorResult(kind ErrorKind, format string, args ...any) Result {
	return Result{Err: &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Dispatcher resolves a tool name and argument bag into upstream calls.
type Dispatcher struct {
	client *polar.Client
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher on top of the AccessLink client.
func NewDispatcher(client *polar.Client, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With().Str("component", "tools").Logger(),
	}
}

// Execute runs one tool invocation with the given access grant. All
// argument validation happens before the first upstream call.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any, grant auth.Grant) Result {
	def, ok := Lookup(name)
	if !ok {
		return errorResult(ErrInternal, "unknown tool %q", name)
	}

	if def.NeedsUserID && grant.UserID == 0 {
		return errorResult(ErrConfiguration,
			"no Polar user id available: set POLAR_USER_ID for the local deployment, or re-authorize to refresh the session")
	}

	if def.Kind == KindPhysicalInfo {
		return d.executePhysicalInfo(ctx, grant)
	}

	path, query, errRes := buildEndpoint(def, args, grant)
	if errRes != nil {
		return *errRes
	}
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	raw, err := d.client.Request(ctx, http.MethodGet, path, grant.AccessToken)
	if err != nil {
		return upstreamFailure(err)
	}
	if raw == nil {
		return Result{Payload: json.RawMessage(`null`)}
	}
	return Result{Payload: raw}
}

// buildEndpoint applies the definition's endpoint-construction rule.
func buildEndpoint(def Definition, args map[string]any, grant auth.Grant) (string, url.Values, *Result) {
	query := url.Values{}

	for _, flag := range def.Flags {
		// Only true is serialized; absence means false to the API.
		if boolArg(args, flag) {
			query.Set(flag, "true")
		}
	}

	switch def.Kind {
	case KindLiteral:
		return def.Path, query, nil

	case KindDate:
		path := def.Path
		if date := stringArg(args, "date"); date != "" {
			path += "/" + url.PathEscape(date)
		}
		return path, query, nil

	case KindRange:
		from := stringArg(args, "from")
		to := stringArg(args, "to")
		if from == "" || to == "" {
			res := errorResult(ErrBadArgument, "both from and to are required")
			return "", nil, &res
		}
		query.Set("from", from)
		query.Set("to", to)
		return def.Path, query, nil

	case KindPeriod:
		unit := stringArg(args, "unit")
		if unit != "days" && unit != "months" {
			res := errorResult(ErrBadArgument, "unit must be \"days\" or \"months\"")
			return "", nil, &res
		}
		count := intArg(args, "count", 0)
		if count <= 0 {
			res := errorResult(ErrBadArgument, "count is required and must be a positive integer")
			return "", nil, &res
		}
		return fmt.Sprintf("%s/%s/%d", def.Path, unit, count), query, nil

	case KindExercise, KindExerciseExport:
		exerciseID := stringArg(args, "exercise_id")
		if exerciseID == "" {
			res := errorResult(ErrBadArgument, "exercise_id is required")
			return "", nil, &res
		}
		path := def.Path + "/" + url.PathEscape(exerciseID)
		if def.Kind == KindExerciseExport {
			path += "/" + def.Format
		}
		return path, query, nil

	case KindUserInfo:
		return fmt.Sprintf("/users/%d", grant.UserID), query, nil

	default:
		res := errorResult(ErrInternal, "unhandled endpoint kind %d", def.Kind)
		return "", nil, &res
	}
}

// executePhysicalInfo runs the create/list/fetch/commit transaction
// protocol. The transaction must be committed on every branch, including
// the empty one; an uncommitted transaction blocks the next attempt on the
// vendor side.
func (d *Dispatcher) executePhysicalInfo(ctx context.Context, grant auth.Grant) Result {
	tx, err := d.client.CreatePhysicalInfoTransaction(ctx, grant.AccessToken, grant.UserID)
	if err != nil {
		return upstreamFailure(err)
	}
	if tx == nil {
		return Result{Payload: map[string]string{"message": "no new physical information available"}}
	}

	resources, err := d.client.ListPhysicalInfoTransaction(ctx, grant.AccessToken, grant.UserID, tx.TransactionID)
	if err != nil {
		d.commitTransaction(ctx, grant, tx.TransactionID)
		return upstreamFailure(err)
	}

	if len(resources.PhysicalInformations) == 0 {
		d.commitTransaction(ctx, grant, tx.TransactionID)
		return Result{Payload: map[string]string{"message": "no new physical information available"}}
	}

	items := make([]json.RawMessage, 0, len(resources.PhysicalInformations))
	for _, uri := range resources.PhysicalInformations {
		item, err := d.client.FetchResource(ctx, grant.AccessToken, uri)
		if err != nil {
			d.logger.Warn().Err(err).Str("resource", uri).Msg("fetching physical information resource failed")
			continue
		}
		if item != nil {
			items = append(items, item)
		}
	}

	d.commitTransaction(ctx, grant, tx.TransactionID)

	switch len(items) {
	case 0:
		return Result{Payload: map[string]string{"message": "no new physical information available"}}
	case 1:
		return Result{Payload: items[0]}
	default:
		return Result{Payload: items}
	}
}

// commitTransaction closes the transaction best-effort. The retrieved data
// is still valid when the commit fails, so the failure is logged and not
// surfaced to the caller.
func (d *Dispatcher) commitTransaction(ctx context.Context, grant auth.Grant, transactionID int64) {
	if err := d.client.CommitPhysicalInfoTransaction(ctx, grant.AccessToken, grant.UserID, transactionID); err != nil {
		d.logger.Warn().Err(err).Int64("transaction_id", transactionID).Msg("committing physical information transaction failed")
	}
}

func upstreamFailure(err error) Result {
	if apiErr, ok := err.(*polar.APIError); ok {
		return Result{Err: &Error{Kind: ErrUpstream, Status: apiErr.StatusCode, Message: apiErr.Error()}}
	}
	return Result{Err: &Error{Kind: ErrInternal, Message: err.Error()}}
}
