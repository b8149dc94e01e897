package lang

func init() {
	Register(&LanguageSpec{
		Language:       JavaScript,
		FileExtensions: []string{".js"},
		DeclarationCallees: map[string]DeclKind{
			"goog.provide":        DeclProvide,
			"goog.module":         DeclProvide,
			"goog.require":        DeclRequire,
			"goog.requireType":    DeclForward,
			"goog.forwardDeclare": DeclForward,
		},
		FunctionNodeTypes: []string{
			"function_declaration",
			"generator_function_declaration",
			"function_expression",
			"function",
			"generator_function",
			"arrow_function",
			"method_definition",
		},
		CallNodeTypes:       []string{"call_expression"},
		CommentNodeTypes:    []string{"comment"},
		DeclaratorNodeTypes: []string{"variable_declarator"},
		DeferringCallees: []string{
			"setTimeout",
			"setInterval",
			"requestAnimationFrame",
			"queueMicrotask",
			"addEventListener",
			"then",
			"catch",
			"finally",
			"goog.events.listen",
			"goog.events.listenOnce",
			"goog.Timer.callOnce",
			"goog.async.nextTick",
			"goog.async.run",
		},
		TestSuffixes: []string{"_test.js"},
		TestDirs:     []string{"__tests__"},
	})
}
