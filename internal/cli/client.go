package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// OrderResponse — заказ из API.
type OrderResponse struct {
	ID               string           `json:"id"`
	Number           string           `json:"number"`
	Status           string           `json:"status"`
	Priority         string           `json:"priority"`
	CurrentStepIndex int              `json:"current_step_index"`
	Steps            []StepResponse   `json:"steps,omitempty"`
	Summary          *SummaryResponse `json:"summary,omitempty"`
	ActualStartAt    string           `json:"actual_start_at,omitempty"`
	ActualEndAt      string           `json:"actual_end_at,omitempty"`
	CreatedAt        string           `json:"created_at"`
}

// StepResponse — этап заказа из API.
type StepResponse struct {
	StepIndex   int                `json:"step_index"`
	StepID      string             `json:"step_id"`
	Status      string             `json:"status"`
	StartedAt   string             `json:"started_at,omitempty"`
	CompletedAt string             `json:"completed_at,omitempty"`
	Machines    []ProgressResponse `json:"machines"`
}

// ProgressResponse — запись прогресса машины из API.
type ProgressResponse struct {
	MachineID     string              `json:"machine_id"`
	StepIndex     int                 `json:"step_index"`
	SequenceOrder int                 `json:"sequence_order"`
	Status        string              `json:"status"`
	OperatorID    string              `json:"operator_id,omitempty"`
	StartedAt     string              `json:"started_at,omitempty"`
	CompletedAt   string              `json:"completed_at,omitempty"`
	StoppedAt     string              `json:"stopped_at,omitempty"`
	Calculated    *CalculatedResponse `json:"calculated,omitempty"`
	QualityStatus string              `json:"quality_status,omitempty"`
	QualityNotes  []string            `json:"quality_notes,omitempty"`
	Reason        string              `json:"reason,omitempty"`
	Note          string              `json:"note,omitempty"`
}

// CalculatedResponse — агрегат выпуска из API.
type CalculatedResponse struct {
	NetWeight  float64 `json:"net_weight"`
	Wastage    float64 `json:"wastage"`
	Efficiency float64 `json:"efficiency"`
	Cost       float64 `json:"cost"`
	Units      int     `json:"units"`
	Rows       int     `json:"rows"`
	Status     string  `json:"status,omitempty"`
}

// SummaryResponse — сводка заказа из API.
type SummaryResponse struct {
	TotalSteps        int     `json:"total_steps"`
	CompletedSteps    int     `json:"completed_steps"`
	TotalMachines     int     `json:"total_machines"`
	ActiveMachines    int     `json:"active_machines"`
	CompletedMachines int     `json:"completed_machines"`
	NetWeight         float64 `json:"net_weight"`
	Wastage           float64 `json:"wastage"`
	Cost              float64 `json:"cost"`
	Progress          float64 `json:"progress"`
}

// RowResultResponse — результат применения одной мутации.
type RowResultResponse struct {
	Index   int    `json:"index"`
	Op      string `json:"op"`
	RowID   string `json:"row_id,omitempty"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// SnapshotResponse — результат батча из API.
type SnapshotResponse struct {
	Results []RowResultResponse `json:"results"`
	Output  CalculatedResponse  `json:"output"`
	Machine ProgressResponse    `json:"machine"`
}

// RowResponse — строка выработки из API.
type RowResponse struct {
	ID          string  `json:"id"`
	GrossWeight float64 `json:"gross_weight"`
	TareWeight  float64 `json:"tare_weight"`
	NetWeight   float64 `json:"net_weight"`
	Wastage     float64 `json:"wastage"`
	Cost        float64 `json:"cost"`
	Units       int     `json:"units"`
	Note        string  `json:"note,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// AuditResponse — запись журнала аудита из API.
type AuditResponse struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	MachineID string `json:"machine_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Action    string `json:"action"`
	StopType  string `json:"stop_type,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// PendingResponse — элемент очереди работ машины из API.
type PendingResponse struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Priority      string `json:"priority"`
	StepIndex     int    `json:"step_index"`
	SequenceOrder int    `json:"sequence_order"`
	CreatedAt     string `json:"created_at"`
}

// MachineResponse — машина справочника из API.
type MachineResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// OperatorResponse — оператор справочника из API.
type OperatorResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// --- Request types ---

// ActorRequest — действие от имени оператора.
type ActorRequest struct {
	OperatorID string `json:"operator_id"`
}

// SaveProgressRequest — батч строк.
type SaveProgressRequest struct {
	OperatorID string          `json:"operator_id"`
	Rows       json.RawMessage `json:"rows"`
	Notes      string          `json:"notes,omitempty"`
}

// CompleteRequest — завершение машины.
type CompleteRequest struct {
	OperatorID string           `json:"operator_id"`
	Rows       json.RawMessage  `json:"rows,omitempty"`
	Override   *OverrideRequest `json:"override,omitempty"`
}

// OverrideRequest — ручной вердикт качества.
type OverrideRequest struct {
	Status string   `json:"status"`
	Notes  []string `json:"notes,omitempty"`
}

// StopRequest — остановка машины.
type StopRequest struct {
	OperatorID      string          `json:"operator_id"`
	Type            string          `json:"type"`
	Reason          string          `json:"reason,omitempty"`
	Note            string          `json:"note,omitempty"`
	Rows            json.RawMessage `json:"rows,omitempty"`
	PlannedResumeAt string          `json:"planned_resume_at,omitempty"`
}

// ListOrdersOpts — параметры фильтрации заказов.
type ListOrdersOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Fabrika API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Orders ---

// ListOrders возвращает заказы с фильтрацией.
func (c *Client) ListOrders(opts ListOrdersOpts) ([]OrderResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var orders []OrderResponse
	err := c.list("/api/v1/orders", params, &orders)
	return orders, err
}

// CreateOrder создаёт заказ из плана (сырой JSON плана каталога).
func (c *Client) CreateOrder(plan json.RawMessage) (*OrderResponse, error) {
	var order OrderResponse
	err := c.post("/api/v1/orders", plan, &order)
	return &order, err
}

// GetOrder возвращает заказ по ID.
func (c *Client) GetOrder(id string) (*OrderResponse, error) {
	var order OrderResponse
	err := c.get("/api/v1/orders/"+id, &order)
	return &order, err
}

// ApproveOrder подтверждает заказ.
func (c *Client) ApproveOrder(id, operatorID string) (*OrderResponse, error) {
	var order OrderResponse
	err := c.post("/api/v1/orders/"+id+"/approve", ActorRequest{OperatorID: operatorID}, &order)
	return &order, err
}

// CancelOrder отменяет заказ.
func (c *Client) CancelOrder(id, operatorID string) (*OrderResponse, error) {
	var order OrderResponse
	err := c.post("/api/v1/orders/"+id+"/cancel", ActorRequest{OperatorID: operatorID}, &order)
	return &order, err
}

// ListAudit возвращает журнал аудита заказа.
func (c *Client) ListAudit(orderID string, limit int) ([]AuditResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var entries []AuditResponse
	err := c.list("/api/v1/orders/"+orderID+"/audit", params, &entries)
	return entries, err
}

// --- Machine actions ---

func machinePath(orderID, machineID, action string) string {
	return "/api/v1/orders/" + orderID + "/machines/" + machineID + "/" + action
}

// StartMachine запускает машину в заказе.
func (c *Client) StartMachine(orderID, machineID, operatorID string) (*ProgressResponse, error) {
	var mp ProgressResponse
	err := c.post(machinePath(orderID, machineID, "start"), ActorRequest{OperatorID: operatorID}, &mp)
	return &mp, err
}

// SaveProgress применяет батч строк.
func (c *Client) SaveProgress(orderID, machineID string, req SaveProgressRequest) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	err := c.post(machinePath(orderID, machineID, "progress"), req, &snap)
	return &snap, err
}

// CompleteMachine завершает машину.
func (c *Client) CompleteMachine(orderID, machineID string, req CompleteRequest) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	err := c.post(machinePath(orderID, machineID, "complete"), req, &snap)
	return &snap, err
}

// StopMachine останавливает машину.
func (c *Client) StopMachine(orderID, machineID string, req StopRequest) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	err := c.post(machinePath(orderID, machineID, "stop"), req, &snap)
	return &snap, err
}

// ResumeMachine возобновляет машину.
func (c *Client) ResumeMachine(orderID, machineID, operatorID string) (*ProgressResponse, error) {
	var mp ProgressResponse
	err := c.post(machinePath(orderID, machineID, "resume"), ActorRequest{OperatorID: operatorID}, &mp)
	return &mp, err
}

// ListRows возвращает строки выработки машины.
func (c *Client) ListRows(orderID, machineID string) ([]RowResponse, error) {
	var rows []RowResponse
	err := c.list(machinePath(orderID, machineID, "rows"), nil, &rows)
	return rows, err
}

// GetPending возвращает очередь работ машины.
func (c *Client) GetPending(machineID string) ([]PendingResponse, error) {
	var work []PendingResponse
	err := c.list("/api/v1/machines/"+machineID+"/pending", nil, &work)
	return work, err
}

// --- Directory ---

// ListMachines возвращает машины справочника.
func (c *Client) ListMachines() ([]MachineResponse, error) {
	var machines []MachineResponse
	err := c.list("/api/v1/machines", nil, &machines)
	return machines, err
}

// CreateMachine добавляет машину в справочник.
func (c *Client) CreateMachine(code, name string) (*MachineResponse, error) {
	body := map[string]string{"code": code, "name": name}
	var m MachineResponse
	err := c.post("/api/v1/machines", body, &m)
	return &m, err
}

// CreateOperator добавляет оператора в справочник.
func (c *Client) CreateOperator(name, role string) (*OperatorResponse, error) {
	body := map[string]string{"name": name, "role": role}
	var o OperatorResponse
	err := c.post("/api/v1/operators", body, &o)
	return &o, err
}

// AssignOperator назначает оператора на машину.
func (c *Client) AssignOperator(machineID, operatorID string) error {
	return c.put("/api/v1/machines/"+machineID+"/operators/"+operatorID, nil, nil)
}

// UnassignOperator снимает назначение.
func (c *Client) UnassignOperator(machineID, operatorID string) error {
	return c.delete("/api/v1/machines/" + machineID + "/operators/" + operatorID)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
