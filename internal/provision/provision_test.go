package provision

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	budgetstypes "github.com/aws/aws-sdk-go-v2/service/budgets/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

func TestPerformanceDashboardBody(t *testing.T) {
	body, err := PerformanceDashboardBody("transformer-model", "eu-west-2")
	if err != nil {
		t.Fatalf("failed to build body: %v", err)
	}

	var parsed struct {
		Widgets []struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
		} `json:"widgets"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if len(parsed.Widgets) != 5 {
		t.Fatalf("expected 5 widgets, got %d", len(parsed.Widgets))
	}
	if parsed.Widgets[4].Type != "log" {
		t.Errorf("expected last widget to be a log widget, got %q", parsed.Widgets[4].Type)
	}

	s := string(body)
	for _, want := range []string{
		"transformer-model-generate-text",
		"transformer-model-visualize-attention",
		"TransformerModel/Performance",
		"TransformerModel/ColdStart",
		"eu-west-2",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestCostDashboardBody(t *testing.T) {
	body, err := CostDashboardBody("transformer-model", "eu-west-2")
	if err != nil {
		t.Fatalf("failed to build body: %v", err)
	}
	s := string(body)
	for _, want := range []string{"TransformerModel/Usage", "TokensGenerated", "NumberOfObjects"} {
		if !strings.Contains(s, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

type fakeDashboards struct {
	names []string
}

func (f *fakeDashboards) PutDashboard(ctx context.Context, params *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	f.names = append(f.names, aws.ToString(params.DashboardName))
	return &cloudwatch.PutDashboardOutput{}, nil
}

func TestCreateDashboards(t *testing.T) {
	fake := &fakeDashboards{}
	if err := CreateDashboards(context.Background(), fake, "transformer-model", "eu-west-2"); err != nil {
		t.Fatalf("CreateDashboards failed: %v", err)
	}
	if len(fake.names) != 2 {
		t.Fatalf("expected 2 dashboards, got %d", len(fake.names))
	}
	if fake.names[0] != "transformer-model-performance-dashboard" {
		t.Errorf("unexpected dashboard name %q", fake.names[0])
	}
	if fake.names[1] != "transformer-model-cost-dashboard" {
		t.Errorf("unexpected dashboard name %q", fake.names[1])
	}
}

type fakeBudgets struct {
	createErr error
	created   []*budgets.CreateBudgetInput
	updated   []*budgets.UpdateBudgetInput
}

func (f *fakeBudgets) CreateBudget(ctx context.Context, params *budgets.CreateBudgetInput, optFns ...func(*budgets.Options)) (*budgets.CreateBudgetOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, params)
	return &budgets.CreateBudgetOutput{}, nil
}

func (f *fakeBudgets) UpdateBudget(ctx context.Context, params *budgets.UpdateBudgetInput, optFns ...func(*budgets.Options)) (*budgets.UpdateBudgetOutput, error) {
	f.updated = append(f.updated, params)
	return &budgets.UpdateBudgetOutput{}, nil
}

type fakeSTS struct{}

func (fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
}

func TestSetupBudgetCreatesWithNotifications(t *testing.T) {
	fake := &fakeBudgets{}
	err := SetupBudget(context.Background(), fake, fakeSTS{}, "transformer-model", 25, "ops@example.com")
	if err != nil {
		t.Fatalf("SetupBudget failed: %v", err)
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(fake.created))
	}
	input := fake.created[0]
	if got := aws.ToString(input.AccountId); got != "123456789012" {
		t.Errorf("account ID = %q", got)
	}
	if got := aws.ToString(input.Budget.BudgetLimit.Amount); got != "25.00" {
		t.Errorf("budget limit = %q, want 25.00", got)
	}
	if len(input.NotificationsWithSubscribers) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(input.NotificationsWithSubscribers))
	}
	actual := input.NotificationsWithSubscribers[0].Notification
	if actual.Threshold != 80 || actual.NotificationType != budgetstypes.NotificationTypeActual {
		t.Errorf("first notification = %v at %v%%, want ACTUAL at 80%%", actual.NotificationType, actual.Threshold)
	}
	forecast := input.NotificationsWithSubscribers[1].Notification
	if forecast.Threshold != 100 || forecast.NotificationType != budgetstypes.NotificationTypeForecasted {
		t.Errorf("second notification = %v at %v%%, want FORECASTED at 100%%", forecast.NotificationType, forecast.Threshold)
	}
}

func TestSetupBudgetUpdatesDuplicate(t *testing.T) {
	fake := &fakeBudgets{createErr: &budgetstypes.DuplicateRecordException{}}
	err := SetupBudget(context.Background(), fake, fakeSTS{}, "transformer-model", 50, "ops@example.com")
	if err != nil {
		t.Fatalf("SetupBudget failed: %v", err)
	}
	if len(fake.updated) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(fake.updated))
	}
	if got := aws.ToString(fake.updated[0].NewBudget.BudgetLimit.Amount); got != "50.00" {
		t.Errorf("updated limit = %q, want 50.00", got)
	}
}

func TestSetupBudgetRequiresEmail(t *testing.T) {
	err := SetupBudget(context.Background(), &fakeBudgets{}, fakeSTS{}, "transformer-model", 25, "")
	if err == nil {
		t.Fatal("expected error for missing email")
	}
}

func TestCostAlarmInputs(t *testing.T) {
	inputs := CostAlarmInputs("transformer-model")
	if len(inputs) != 2 {
		t.Fatalf("expected 2 alarms, got %d", len(inputs))
	}
	if got := aws.ToString(inputs[0].AlarmName); got != "TransformerModel-HighInvocationCount" {
		t.Errorf("alarm name = %q", got)
	}
	if got := aws.ToFloat64(inputs[0].Threshold); got != 100 {
		t.Errorf("invocation threshold = %v, want 100", got)
	}
	if got := aws.ToFloat64(inputs[1].Threshold); got != 150 {
		t.Errorf("API request threshold = %v, want 150", got)
	}
	for _, in := range inputs {
		if got := aws.ToInt32(in.Period); got != 300 {
			t.Errorf("alarm %s period = %d, want 300", aws.ToString(in.AlarmName), got)
		}
	}
}

type fakeLogs struct {
	inputs []*cloudwatchlogs.PutMetricFilterInput
}

func (f *fakeLogs) PutMetricFilter(ctx context.Context, params *cloudwatchlogs.PutMetricFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutMetricFilterOutput, error) {
	f.inputs = append(f.inputs, params)
	return &cloudwatchlogs.PutMetricFilterOutput{}, nil
}

func TestCreateMetricFilters(t *testing.T) {
	fake := &fakeLogs{}
	if err := CreateMetricFilters(context.Background(), fake, "transformer-model"); err != nil {
		t.Fatalf("CreateMetricFilters failed: %v", err)
	}
	if len(fake.inputs) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(fake.inputs))
	}

	byName := map[string]*cloudwatchlogs.PutMetricFilterInput{}
	for _, in := range fake.inputs {
		byName[aws.ToString(in.FilterName)] = in
	}
	loads, ok := byName["ModelLoads"]
	if !ok {
		t.Fatal("missing ModelLoads filter")
	}
	if got := aws.ToString(loads.FilterPattern); !strings.Contains(got, "Model loaded successfully") {
		t.Errorf("ModelLoads pattern = %q", got)
	}
	if got := aws.ToString(loads.MetricTransformations[0].MetricNamespace); got != "TransformerModel/ColdStart" {
		t.Errorf("ModelLoads namespace = %q", got)
	}
}

type fakeSeeder struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeSeeder) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestSeedCustomMetrics(t *testing.T) {
	fake := &fakeSeeder{}
	if err := SeedCustomMetrics(context.Background(), fake, "Production"); err != nil {
		t.Fatalf("SeedCustomMetrics failed: %v", err)
	}
	if len(fake.inputs) != 4 {
		t.Fatalf("expected 4 seeded metrics, got %d", len(fake.inputs))
	}
	for _, in := range fake.inputs {
		datum := in.MetricData[0]
		if aws.ToFloat64(datum.Value) != 0 {
			t.Errorf("seed value for %s = %v, want 0", aws.ToString(datum.MetricName), aws.ToFloat64(datum.Value))
		}
		foundEnv := false
		for _, d := range datum.Dimensions {
			if aws.ToString(d.Name) == "Environment" && aws.ToString(d.Value) == "Production" {
				foundEnv = true
			}
		}
		if !foundEnv {
			t.Errorf("metric %s missing Environment dimension", aws.ToString(datum.MetricName))
		}
	}
}

type fakeLambda struct{}

func (fakeLambda) GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	return &lambda.GetFunctionOutput{
		Configuration: &lambdatypes.FunctionConfiguration{
			FunctionName: params.FunctionName,
			Runtime:      lambdatypes.RuntimeProvidedal2023,
			MemorySize:   aws.Int32(1024),
			Timeout:      aws.Int32(30),
			CodeSize:     5 << 20,
			LastModified: aws.String("2026-08-20T10:00:00.000+0000"),
		},
	}, nil
}

type fakeS3List struct{}

func (fakeS3List) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{
		Contents: []s3types.Object{
			{Key: aws.String("models/model.bin"), Size: aws.Int64(40 << 20)},
			{Key: aws.String("models/vocab.json"), Size: aws.Int64(200 << 10)},
		},
	}, nil
}

type fakeCost struct {
	err error
}

func (f fakeCost) GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []cetypes.ResultByTime{
			{Total: map[string]cetypes.MetricValue{
				"UnblendedCost": {Amount: aws.String("3.14"), Unit: aws.String("USD")},
			}},
		},
	}, nil
}

func TestGatherReport(t *testing.T) {
	clients := ReportClients{Lambda: fakeLambda{}, S3: fakeS3List{}, Cost: fakeCost{}}
	report, err := GatherReport(context.Background(), clients, "transformer-model", "eu-west-2", "transformer-model-artifacts")
	if err != nil {
		t.Fatalf("GatherReport failed: %v", err)
	}
	if len(report.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(report.Functions))
	}
	if report.Functions[0].Name != "transformer-model-generate-text" {
		t.Errorf("function name = %q", report.Functions[0].Name)
	}
	if len(report.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(report.Artifacts))
	}
	if report.MonthToDateUSD != "3.14" {
		t.Errorf("cost = %q, want 3.14", report.MonthToDateUSD)
	}

	md := report.Markdown()
	for _, want := range []string{
		"# Deployment Report: transformer-model",
		"transformer-model-generate-text",
		"models/model.bin",
		"$3.14",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestGatherReportCostUnavailable(t *testing.T) {
	clients := ReportClients{
		Lambda: fakeLambda{},
		S3:     fakeS3List{},
		Cost:   fakeCost{err: errNotEnabled},
	}
	report, err := GatherReport(context.Background(), clients, "transformer-model", "eu-west-2", "transformer-model-artifacts")
	if err != nil {
		t.Fatalf("GatherReport failed: %v", err)
	}
	if !report.CostUnavailable {
		t.Error("expected CostUnavailable to be set")
	}
	if !strings.Contains(report.Markdown(), "unavailable") {
		t.Error("markdown should mention cost is unavailable")
	}
}

var errNotEnabled = &cetypes.DataUnavailableException{}
