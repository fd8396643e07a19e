package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cdi-tracker/internal/domain/frequentation"
	"cdi-tracker/pkg/timestamp"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// LoadTestConfig holds configuration for load testing
type LoadTestConfig struct {
	BaseURL         string
	NumStudents     int
	ConcurrentUsers int
	RequestsPerUser int
	BatchSize       int
}

// LoadTestResult holds the results of load testing
type LoadTestResult struct {
	TotalRequests     int
	SuccessfulReqs    int
	RejectedReqs      int
	FailedReqs        int
	AvgResponseTimeMs float64
	MaxResponseTimeMs int64
	MinResponseTimeMs int64
	ThroughputRPS     float64
	ErrorsByType      map[string]int
}

// channelEnvelope is the subset of the reply the load tester reads.
type channelEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// LoadTester fires concurrent attendance writes at a running server
type LoadTester struct {
	config    LoadTestConfig
	client    *http.Client
	students  []int64
	results   LoadTestResult
	mutex     sync.Mutex
	startTime time.Time
}

func NewLoadTester(config LoadTestConfig) *LoadTester {
	return &LoadTester{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		results: LoadTestResult{
			ErrorsByType: make(map[string]int),
		},
	}
}

func (lt *LoadTester) call(channel string, payload interface{}) (*channelEnvelope, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	resp, err := lt.client.Post(fmt.Sprintf("%s/api/v1/ipc/%s", lt.config.BaseURL, channel), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env channelEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, err
	}
	return &env, resp.StatusCode, nil
}

// Initialize seeds a run-specific set of students and collects their ids.
func (lt *LoadTester) Initialize() error {
	fmt.Println("Seeding load test students...")

	run := uuid.NewString()[:8]
	classe := "LT-" + run
	for start := 0; start < lt.config.NumStudents; start += lt.config.BatchSize {
		end := start + lt.config.BatchSize
		if end > lt.config.NumStudents {
			end = lt.config.NumStudents
		}
		batch := make([]map[string]string, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, map[string]string{
				"nom":    fmt.Sprintf("Charge%05d", i),
				"prenom": run,
				"classe": classe,
			})
		}
		env, _, err := lt.call("student:createBatch", batch)
		if err != nil {
			return fmt.Errorf("failed to seed students: %w", err)
		}
		if !env.Success {
			return fmt.Errorf("failed to seed students: %s", env.Error)
		}
	}

	env, _, err := lt.call("student:getByClass", map[string]string{"classe": classe})
	if err != nil {
		return fmt.Errorf("failed to list seeded students: %w", err)
	}
	var list struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return fmt.Errorf("failed to decode seeded students: %w", err)
	}
	for _, s := range list.Items {
		lt.students = append(lt.students, s.ID)
	}
	if len(lt.students) == 0 {
		return fmt.Errorf("no student was seeded")
	}

	fmt.Printf("Seeded %d students in class %s\n", len(lt.students), classe)
	return nil
}

// RunLoadTest executes the load test
func (lt *LoadTester) RunLoadTest() {
	fmt.Printf("Starting load test with %d concurrent users...\n", lt.config.ConcurrentUsers)

	lt.startTime = time.Now()
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, lt.config.ConcurrentUsers)
	totalRequests := lt.config.ConcurrentUsers * lt.config.RequestsPerUser

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)

		go func(requestID int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			lt.simulateVisit(requestID)
		}(i)
	}

	wg.Wait()

	lt.calculateMetrics()
	lt.printResults()
}

// simulateVisit records one attendance row for a seeded student.
func (lt *LoadTester) simulateVisit(requestID int) {
	startTime := time.Now()

	activity := frequentation.Activities[requestID%len(frequentation.Activities)]
	payload := map[string]interface{}{
		"studentId": lt.students[requestID%len(lt.students)],
		"activity":  string(activity),
		"startsAt":  timestamp.Format(startTime.Add(-time.Duration(requestID%480) * time.Minute)),
	}

	env, status, err := lt.call("frequentation:create", payload)
	if err != nil {
		lt.recordError("http_request")
		return
	}
	lt.recordResponse(status, env.Success, time.Since(startTime))
}

func (lt *LoadTester) recordResponse(statusCode int, success bool, responseTime time.Duration) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	responseTimeMs := responseTime.Milliseconds()

	if lt.results.MaxResponseTimeMs < responseTimeMs {
		lt.results.MaxResponseTimeMs = responseTimeMs
	}
	if lt.results.MinResponseTimeMs == 0 || lt.results.MinResponseTimeMs > responseTimeMs {
		lt.results.MinResponseTimeMs = responseTimeMs
	}

	currentAvg := lt.results.AvgResponseTimeMs
	currentCount := float64(lt.results.TotalRequests)
	lt.results.AvgResponseTimeMs = (currentAvg*(currentCount-1) + float64(responseTimeMs)) / currentCount

	switch {
	case success:
		lt.results.SuccessfulReqs++
	case statusCode >= 400 && statusCode < 500:
		lt.results.RejectedReqs++
		lt.results.ErrorsByType[fmt.Sprintf("http_%d", statusCode)]++
	default:
		lt.results.FailedReqs++
		lt.results.ErrorsByType[fmt.Sprintf("http_%d", statusCode)]++
	}
}

func (lt *LoadTester) recordError(errorType string) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	lt.results.FailedReqs++
	lt.results.ErrorsByType[errorType]++
}

func (lt *LoadTester) calculateMetrics() {
	totalDuration := time.Since(lt.startTime)
	lt.results.ThroughputRPS = float64(lt.results.TotalRequests) / totalDuration.Seconds()
}

func (lt *LoadTester) printResults() {
	total := float64(lt.results.TotalRequests)
	if total == 0 {
		total = 1
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	fmt.Printf("Test Configuration:\n")
	fmt.Printf("  - Concurrent Users: %d\n", lt.config.ConcurrentUsers)
	fmt.Printf("  - Requests per User: %d\n", lt.config.RequestsPerUser)
	fmt.Printf("  - Students: %d\n", len(lt.students))

	fmt.Printf("\nOverall Performance:\n")
	fmt.Printf("  - Total Requests: %d\n", lt.results.TotalRequests)
	fmt.Printf("  - Successful: %d (%.2f%%)\n", lt.results.SuccessfulReqs, float64(lt.results.SuccessfulReqs)/total*100)
	fmt.Printf("  - Rejected: %d (%.2f%%)\n", lt.results.RejectedReqs, float64(lt.results.RejectedReqs)/total*100)
	fmt.Printf("  - Failed: %d (%.2f%%)\n", lt.results.FailedReqs, float64(lt.results.FailedReqs)/total*100)

	fmt.Printf("\nResponse Time Metrics:\n")
	fmt.Printf("  - Average: %.2f ms\n", lt.results.AvgResponseTimeMs)
	fmt.Printf("  - Minimum: %d ms\n", lt.results.MinResponseTimeMs)
	fmt.Printf("  - Maximum: %d ms\n", lt.results.MaxResponseTimeMs)

	fmt.Printf("\nThroughput:\n")
	fmt.Printf("  - Requests per Second: %.2f\n", lt.results.ThroughputRPS)

	if len(lt.results.ErrorsByType) > 0 {
		fmt.Printf("\nError Breakdown:\n")
		for errorType, count := range lt.results.ErrorsByType {
			fmt.Printf("  - %s: %d\n", errorType, count)
		}
	}
}

// loadtestCmd represents the loadtest command
var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run a load test against a running server",
	Long: `Seed a class of students, then record attendance for them from many
concurrent clients and report latency and throughput. SQLite serializes
writers, so this mostly measures the busy timeout under contention.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoadTest()
	},
}

var (
	baseURL         string
	numStudents     int
	concurrentUsers int
	requestsPerUser int
	seedBatchSize   int
)

func init() {
	rootCmd.AddCommand(loadtestCmd)

	loadtestCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the server")
	loadtestCmd.Flags().IntVar(&numStudents, "students", 200, "Number of students to seed")
	loadtestCmd.Flags().IntVar(&concurrentUsers, "concurrent", 20, "Number of concurrent clients")
	loadtestCmd.Flags().IntVar(&requestsPerUser, "requests", 10, "Number of requests per client")
	loadtestCmd.Flags().IntVar(&seedBatchSize, "batch", 100, "Students per seeding batch")
}

func runLoadTest() error {
	if seedBatchSize <= 0 {
		seedBatchSize = 100
	}
	loadTester := NewLoadTester(LoadTestConfig{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		NumStudents:     numStudents,
		ConcurrentUsers: concurrentUsers,
		RequestsPerUser: requestsPerUser,
		BatchSize:       seedBatchSize,
	})
	if err := loadTester.Initialize(); err != nil {
		return err
	}

	fmt.Println("CDI Attendance Load Test")
	fmt.Println("========================")

	loadTester.RunLoadTest()
	return nil
}
