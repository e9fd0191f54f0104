package tools

// BuiltinDeps carries the collaborators the standard tool set needs.
// Nil searchers skip their tools; a nil approver skips coding plans.
type BuiltinDeps struct {
	Session    *Session
	Web        WebSearcher
	Academic   AcademicSearcher
	Specialist SpecialistOptions
	Approver   PlanApprover
}

// RegisterBuiltins wires the standard tool set into the registry in
// display order and installs the aliases models commonly emit. The
// intent detector is registered last so its routing list covers every
// other tool; it is returned for callers that route with it directly.
func RegisterBuiltins(reg *Registry, deps BuiltinDeps) *IntentDetectorTool {
	reg.Register(NewReadFileTool(deps.Session))
	reg.Register(NewWriteFileTool(deps.Session))
	reg.Register(NewEditFileTool(deps.Session))
	reg.Register(NewMakeDirectoryTool(deps.Session))
	reg.Register(NewListFilesTool(deps.Session))
	reg.Register(NewPwdTool(deps.Session))
	reg.Register(NewRunShellTool(deps.Session))

	if deps.Web != nil {
		reg.Register(NewWebSearchTool(deps.Web, 0))
	}
	if deps.Academic != nil {
		reg.Register(NewAcademicSearchTool(deps.Academic))
	}

	reg.Register(NewReasoningTool(deps.Specialist))
	reg.Register(NewSearchModelTool(deps.Specialist))
	reg.Register(NewCodingAgentTool(deps.Specialist, deps.Approver))
	reg.Register(NewNehandaTool(deps.Specialist))
	reg.Register(NewGenerateImageTool(deps.Specialist))
	reg.Register(NewAnalyzeImageTool(deps.Session, deps.Specialist))

	detector := NewIntentDetectorTool(deps.Specialist, reg.Names())
	reg.Register(detector)

	reg.Alias("read", "read_file")
	reg.Alias("write", "write_file")
	reg.Alias("edit", "edit_file")
	reg.Alias("mkdir", "make_directory")
	reg.Alias("ls", "list_files")
	reg.Alias("list_directory", "list_files")
	reg.Alias("shell", "run_shell")
	reg.Alias("bash", "run_shell")
	reg.Alias("exec", "run_shell")
	reg.Alias("execute_command", "run_shell")
	reg.Alias("search", "web_search")
	reg.Alias("search_web", "web_search")
	reg.Alias("websearch", "web_search")
	reg.Alias("academic", "academic_search")
	reg.Alias("reasoning", "use_reasoning_model")
	reg.Alias("code", "use_coding_agent")
	reg.Alias("nehanda", "use_nehanda")
	reg.Alias("image", "generate_image")
	reg.Alias("vision", "analyze_image")

	return detector
}
