package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				project_id VARCHAR(255) NOT NULL,
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'archived')),
				versions JSONB NOT NULL DEFAULT '[]',
				current_version INT NOT NULL DEFAULT 0,
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_project_id ON workflows(project_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
		`,
		2: `
			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				version INT NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('PENDING', 'RUNNING', 'COMPLETED', 'FAILED', 'CANCELLED')),
				triggered_by VARCHAR(255) NOT NULL DEFAULT '',
				trigger_id VARCHAR(255) NOT NULL DEFAULT '',
				parameters JSONB NOT NULL DEFAULT '{}',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				logs JSONB NOT NULL DEFAULT '[]',
				result JSONB,
				error_message TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_workflow_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX idx_workflow_executions_started_at ON workflow_executions(started_at);
		`,
		3: `
			CREATE TABLE workflow_triggers (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				workflow_id VARCHAR(255) NOT NULL,
				project_id VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(50) NOT NULL CHECK (trigger_type IN ('MANUAL', 'SCHEDULED', 'WEBHOOK', 'EVENT')),
				config JSONB NOT NULL DEFAULT '{}',
				default_inputs JSONB NOT NULL DEFAULT '{}',
				enabled BOOLEAN NOT NULL DEFAULT true,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				execution_count BIGINT NOT NULL DEFAULT 0,
				last_execution_at TIMESTAMP WITH TIME ZONE,
				last_execution_status VARCHAR(50) NOT NULL DEFAULT '',
				last_execution_id VARCHAR(255) NOT NULL DEFAULT '',
				UNIQUE (project_id, name)
			);

			CREATE INDEX idx_workflow_triggers_workflow_id ON workflow_triggers(workflow_id);
			CREATE INDEX idx_workflow_triggers_type_enabled ON workflow_triggers(trigger_type, enabled);
		`,
	}
}
