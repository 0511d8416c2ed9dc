/*
Package ports defines the driven ports (interfaces) for the formtree engine.

These interfaces decouple the form runtime from external implementations, allowing
the engine to work with various template sources, response backends, and terminology servers.

# Key Interfaces

  - QuestionnaireLoader: Resolves questionnaire templates (e.g., from Loam, a directory, or Memory).
  - ResponseStore: Persists and loads QuestionnaireResponse documents by session id.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - ValueSetExpander: Expands answerValueSet canonicals into answer options.
*/
package ports
