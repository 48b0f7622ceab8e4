package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/types"
)

// CommitAck is the structured payload of memory_commit.
type CommitAck struct {
	OK bool `json:"ok"`
	*memory.CommitResult
}

func (s *Server) handleMemoryResume(req *Request) Response {
	var args ResumeArgs
	if err := decodeArgs(req, &args); err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	if err := args.Validate(); err != nil {
		return failure(err)
	}

	ctx, cancel := s.reqCtx()
	defer cancel()

	bundle, err := s.engine.Resume(ctx, args.SessionID, args.TokenBudget)
	if err != nil {
		return failure(err)
	}
	return okResult(bundle.Now, bundle)
}

func (s *Server) handleMemoryCommit(req *Request) Response {
	var input types.CommitInput
	if err := decodeArgs(req, &input); err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	ctx, cancel := s.reqCtx()
	defer cancel()

	res, err := s.engine.Commit(ctx, &input)
	if err != nil {
		return failure(err)
	}
	if s.afterCommit != nil {
		s.afterCommit(res)
	}

	text := fmt.Sprintf("committed %d event(s), %d artifact(s), %d fact(s) to %s",
		len(res.EventIDs), len(res.ArtifactIDs), len(res.FactIDs), res.SessionID)
	return okResult(text, CommitAck{OK: true, CommitResult: res})
}

func (s *Server) handleMemoryUpdate(req *Request) Response {
	var args UpdateArgs
	if err := decodeArgs(req, &args); err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	if err := args.Validate(); err != nil {
		return failure(err)
	}

	ctx, cancel := s.reqCtx()
	defer cancel()

	switch args.Target {
	case memory.TargetTask:
		upd, err := taskUpdateFromArgs(&args)
		if err != nil {
			return failure(err)
		}
		task, err := s.engine.UpdateTask(ctx, args.ID, upd)
		if err != nil {
			return failure(err)
		}
		return okResult(fmt.Sprintf("updated task %s", task.ID), task)

	case memory.TargetArtifact:
		art, err := s.engine.UpdateArtifact(ctx, args.ID, artifactUpdateFromArgs(&args))
		if err != nil {
			return failure(err)
		}
		return okResult(fmt.Sprintf("updated artifact %s", art.ID), art)

	case memory.TargetFact:
		fact, err := s.engine.UpdateFact(ctx, args.ID, &memory.FactUpdate{Value: args.Value})
		if err != nil {
			return failure(err)
		}
		return okResult(fmt.Sprintf("updated fact %s", fact.ID), fact)
	}

	// Validate rejected everything else already.
	return failure(types.Errorf(types.ErrValidation, "unknown target %q", args.Target))
}

// taskUpdateFromArgs maps protocol fields onto a task update. The raw
// accept_criteria distinguishes three states: absent (preserve),
// explicit null (clear), string (set).
func taskUpdateFromArgs(args *UpdateArgs) (*memory.TaskUpdate, error) {
	upd := &memory.TaskUpdate{
		Title:    args.Title,
		ParentID: args.ParentID,
	}
	if args.Status != nil {
		status := types.TaskStatus(*args.Status)
		upd.Status = &status
	}
	if len(args.AcceptCriteria) > 0 {
		upd.AcceptSet = true
		if string(args.AcceptCriteria) != "null" {
			var criteria string
			if err := json.Unmarshal(args.AcceptCriteria, &criteria); err != nil {
				return nil, types.WrapError(types.ErrValidation, "accept_criteria must be a string or null", err)
			}
			upd.AcceptCriteria = &criteria
		}
	}
	return upd, nil
}

func artifactUpdateFromArgs(args *UpdateArgs) *memory.ArtifactUpdate {
	upd := &memory.ArtifactUpdate{
		Text: args.Text,
		Meta: args.Meta,
	}
	if args.Kind != nil {
		kind := types.ArtifactKind(*args.Kind)
		upd.Kind = &kind
	}
	return upd
}

func (s *Server) handleMemoryFetch(req *Request) Response {
	var args FetchArgs
	if err := decodeArgs(req, &args); err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	if err := args.Validate(); err != nil {
		return failure(err)
	}

	ctx, cancel := s.reqCtx()
	defer cancel()

	res, err := s.engine.Fetch(ctx, args.ID)
	if err != nil {
		return failure(err)
	}

	text := fmt.Sprintf("%s %s", res.Kind, args.ID)
	if res.Resource != "" {
		text += "\n" + res.Resource
	}
	return okResult(text, res)
}

func (s *Server) handleMemorySpan(req *Request) Response {
	var args SpanArgs
	if err := decodeArgs(req, &args); err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	if err := args.Validate(); err != nil {
		return failure(err)
	}

	text, err := s.engine.Span(args.Path, args.StartLine, args.EndLine)
	if err != nil {
		return failure(err)
	}
	return okResult(text, SpanResult{
		Path:      args.Path,
		StartLine: args.StartLine,
		EndLine:   args.EndLine,
		Text:      text,
	})
}

func (s *Server) handleMemorySearch(req *Request) Response {
	var args SearchArgs
	if err := decodeArgs(req, &args); err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	if err := args.Validate(); err != nil {
		return failure(err)
	}

	ctx, cancel := s.reqCtx()
	defer cancel()

	results, err := s.engine.Search(ctx, args.SessionID, args.Query, args.Limit)
	if err != nil {
		return failure(err)
	}

	text := fmt.Sprintf("%d event(s), %d task(s), %d fact(s) match %q",
		len(results.Events), len(results.Tasks), len(results.Facts), args.Query)
	return okResult(text, results)
}

func (s *Server) handleMemoryCheckpoint(req *Request) Response {
	var args CheckpointArgs
	if err := decodeArgs(req, &args); err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	ctx, cancel := s.reqCtx()
	defer cancel()

	cp, err := s.engine.Checkpoint(ctx, args.SessionID, args.Label)
	if err != nil {
		return failure(err)
	}
	if s.afterCheckpoint != nil {
		s.afterCheckpoint(cp)
	}

	return okResult(fmt.Sprintf("checkpoint %s (%s)", cp.ID, cp.Label), CheckpointAck{
		ID:        cp.ID,
		SessionID: cp.SessionID,
		Label:     cp.Label,
	})
}
