package registration

import (
	"strings"
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/storage"
	"agentmux/internal/terminal"
)

// Timing for registration prompt delivery.
var (
	PromptClearDelay  = 100 * time.Millisecond
	PromptEnterDelay  = 200 * time.Millisecond
	PromptVerifyDelay = 3 * time.Second
)

const memberIDBlockStart = "<<MEMBER_ID_BLOCK>>"
const memberIDBlockEnd = "<<END_MEMBER_ID_BLOCK>>"

// loadTemplate returns role's registration-prompt template, populating the
// cache on first use. The cache entry is immutable for the process
// lifetime.
func (e *Engine) loadTemplate(role string) (string, error) {
	e.templateCacheMu.Lock()
	if tmpl, ok := e.templateCache[role]; ok {
		e.templateCacheMu.Unlock()
		return tmpl, nil
	}
	e.templateCacheMu.Unlock()

	if e.templates == nil {
		return "", ErrConfigMissing
	}
	tmpl, err := e.templates.LoadTemplate(role)
	if err != nil {
		return "", err
	}

	e.templateCacheMu.Lock()
	e.templateCache[role] = tmpl
	e.templateCacheMu.Unlock()
	return tmpl, nil
}

// buildRegistrationPrompt substitutes placeholders, strips the member-id
// JSON sub-expression when no member is present, and appends the briefing
// and identity block.
func (e *Engine) buildRegistrationPrompt(in CreateInput, role string) (string, error) {
	tmpl, err := e.loadTemplate(role)
	if err != nil {
		return "", err
	}

	if in.MemberID == "" {
		tmpl = stripMemberIDBlock(tmpl)
	}

	replacer := strings.NewReplacer(
		"{{SESSION_ID}}", in.SessionName,
		"{{MEMBER_ID}}", in.MemberID,
	)
	prompt := replacer.Replace(tmpl)

	if e.briefing != nil {
		if briefing, err := e.briefing.Briefing(in.SessionName, role); err == nil && briefing != "" {
			prompt = prompt + "\n\n" + briefing
		}
	}

	prompt += identityBlock(in)
	return prompt, nil
}

// stripMemberIDBlock removes the delimited sub-expression a template uses to
// carry a memberId field, rather than leaving it substituted to an empty
// string.
func stripMemberIDBlock(tmpl string) string {
	start := strings.Index(tmpl, memberIDBlockStart)
	if start < 0 {
		return tmpl
	}
	end := strings.Index(tmpl, memberIDBlockEnd)
	if end < 0 || end < start {
		return tmpl
	}
	return tmpl[:start] + tmpl[end+len(memberIDBlockEnd):]
}

func identityBlock(in CreateInput) string {
	var b strings.Builder
	b.WriteString("\n\n---\nsessionName: ")
	b.WriteString(in.SessionName)
	b.WriteString("\nprojectPath: ")
	b.WriteString(in.ProjectPath)
	if in.MemberID != "" {
		b.WriteString("\nmemberId: ")
		b.WriteString(in.MemberID)
	}
	return b.String()
}

// registrationPromptPath chooses the file-indirection target.
func (e *Engine) registrationPromptPath(in CreateInput, rt agentmodel.RuntimeType) string {
	if rt == agentmodel.RuntimeClaudeCode {
		if e.storage != nil {
			return e.storage.RegistrationPromptPath(in.SessionName)
		}
		return in.SessionName + "-init.md"
	}
	return storage.ProjectRegistrationPromptPath(in.ProjectPath, in.SessionName)
}

// deliverRegistrationPrompt writes the prompt to a file, then retries the short imperative pointer
// message up to maxAttempts times.
func (e *Engine) deliverRegistrationPrompt(in CreateInput, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter, abort <-chan struct{}, maxAttempts int) bool {
	prompt, err := e.buildRegistrationPrompt(in, in.Role)
	if err != nil {
		return false
	}
	path := e.registrationPromptPath(in, rt)
	if err := storage.WriteRegistrationPrompt(path, prompt); err != nil {
		return false
	}

	pointer := "Read the file at " + path + " and follow all instructions in it."
	isClaude := rt == agentmodel.RuntimeClaudeCode

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if isAborted(abort) {
			e.activity.DeliveryAttempt(attempt, false, "aborted")
			return false
		}

		before, _ := e.helper.CapturePane(in.SessionName, 20)

		if isClaude {
			e.helper.SendEscape(in.SessionName)
			sleepChecked(PromptClearDelay, abort)
			e.helper.SendKey(in.SessionName, "C-u")
			sleepChecked(PromptClearDelay, abort)
		}
		if isAborted(abort) {
			return false
		}

		if err := e.sendPointerMessage(in.SessionName, pointer, isClaude, abort); err != nil {
			e.activity.DeliveryAttempt(attempt, false, err.Error())
			continue
		}

		sleepChecked(PromptVerifyDelay, abort)
		if isAborted(abort) {
			return false
		}

		after, _ := e.helper.CapturePane(in.SessionName, 20)
		verified := len(after)-len(before) > 20 || terminal.HasProcessingIndicator(after)
		e.activity.DeliveryAttempt(attempt, verified, "")
		if verified {
			return true
		}
	}
	return false
}

// sendPointerMessage writes the short instruction pointing at the
// registration-prompt file and, for Claude-Code, follows with an explicit
// Enter after the two-phase write's own terminating carriage return.
func (e *Engine) sendPointerMessage(session, pointer string, isClaude bool, abort <-chan struct{}) error {
	if err := e.helper.SendMessage(session, pointer); err != nil {
		return err
	}
	if isClaude {
		sleepChecked(PromptEnterDelay, abort)
		e.helper.SendEnter(session)
	}
	return nil
}

// deliverRegistrationPromptAsync is the fire-and-forget entry point called
// from afterReadiness: "asynchronously fire the registration prompt but do
// NOT block on it".
func (e *Engine) deliverRegistrationPromptAsync(in CreateInput, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter) {
	maxAttempts := 3
	if rt == agentmodel.RuntimeClaudeCode {
		maxAttempts = 1
	}
	abort := e.currentAbort(in.SessionName)
	e.deliverRegistrationPrompt(in, rt, adapter, abort, maxAttempts)
}

func (e *Engine) currentAbort(session string) <-chan struct{} {
	e.abortsMu.Lock()
	defer e.abortsMu.Unlock()
	return e.aborts[session]
}

// resumeClaudeCode sends `/resume`, waits for the session picker, sends
// Enter, then re-waits for readiness. Failure is non-fatal — the
// agent continues with a fresh session.
func (e *Engine) resumeClaudeCode(session string, adapter runtimeadapter.Adapter) {
	resumer, ok := adapter.(runtimeadapter.ResumeCapable)
	if !ok {
		return
	}
	if err := resumer.Resume(session); err != nil {
		return
	}
	Sleep(scale(2 * time.Second))
	e.helper.SendEnter(session)
	Sleep(scale(1 * time.Second))
	adapter.WaitForRuntimeReady(session, scale(ResumeReadinessTimeout), scale(StepAReadinessInterval))
}

// ResumeReadinessTimeout bounds the post-/resume readiness re-check.
var ResumeReadinessTimeout = 30 * time.Second
