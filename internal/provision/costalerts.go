package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	budgetstypes "github.com/aws/aws-sdk-go-v2/service/budgets/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// BudgetsAPI is the slice of the Budgets API the budget setup uses. The
// Budgets service only exists in us-east-1; callers must build the client
// against that region regardless of where the stack is deployed.
type BudgetsAPI interface {
	CreateBudget(ctx context.Context, params *budgets.CreateBudgetInput, optFns ...func(*budgets.Options)) (*budgets.CreateBudgetOutput, error)
	UpdateBudget(ctx context.Context, params *budgets.UpdateBudgetInput, optFns ...func(*budgets.Options)) (*budgets.UpdateBudgetOutput, error)
}

// CallerIdentityAPI resolves the account ID a budget belongs to.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AlarmPutter is the slice of the CloudWatch API alarm creation uses.
type AlarmPutter interface {
	PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)
}

func budgetName(project string) string { return project + "-monthly-budget" }

func budgetDefinition(project string, limitUSD float64) *budgetstypes.Budget {
	return &budgetstypes.Budget{
		BudgetName: aws.String(budgetName(project)),
		BudgetLimit: &budgetstypes.Spend{
			Amount: aws.String(strconv.FormatFloat(limitUSD, 'f', 2, 64)),
			Unit:   aws.String("USD"),
		},
		TimeUnit:   budgetstypes.TimeUnitMonthly,
		BudgetType: budgetstypes.BudgetTypeCost,
	}
}

func budgetNotifications(email string) []budgetstypes.NotificationWithSubscribers {
	subscriber := budgetstypes.Subscriber{
		SubscriptionType: budgetstypes.SubscriptionTypeEmail,
		Address:          aws.String(email),
	}
	return []budgetstypes.NotificationWithSubscribers{
		{
			Notification: &budgetstypes.Notification{
				NotificationType:   budgetstypes.NotificationTypeActual,
				ComparisonOperator: budgetstypes.ComparisonOperatorGreaterThan,
				Threshold:          80,
				ThresholdType:      budgetstypes.ThresholdTypePercentage,
			},
			Subscribers: []budgetstypes.Subscriber{subscriber},
		},
		{
			Notification: &budgetstypes.Notification{
				NotificationType:   budgetstypes.NotificationTypeForecasted,
				ComparisonOperator: budgetstypes.ComparisonOperatorGreaterThan,
				Threshold:          100,
				ThresholdType:      budgetstypes.ThresholdTypePercentage,
			},
			Subscribers: []budgetstypes.Subscriber{subscriber},
		},
	}
}

// SetupBudget creates a monthly cost budget with email notifications at 80%
// actual and 100% forecasted spend. If the budget already exists its limit
// is updated in place instead.
func SetupBudget(ctx context.Context, budgetsClient BudgetsAPI, stsClient CallerIdentityAPI, project string, limitUSD float64, email string) error {
	if email == "" {
		return errors.New("provision: notification email is required")
	}
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("provision: failed to resolve account ID: %w", err)
	}
	accountID := identity.Account

	budget := budgetDefinition(project, limitUSD)
	_, err = budgetsClient.CreateBudget(ctx, &budgets.CreateBudgetInput{
		AccountId:                    accountID,
		Budget:                       budget,
		NotificationsWithSubscribers: budgetNotifications(email),
	})
	if err != nil {
		var dup *budgetstypes.DuplicateRecordException
		if !errors.As(err, &dup) {
			return fmt.Errorf("provision: failed to create budget: %w", err)
		}
		_, err = budgetsClient.UpdateBudget(ctx, &budgets.UpdateBudgetInput{
			AccountId: accountID,
			NewBudget: budget,
		})
		if err != nil {
			return fmt.Errorf("provision: failed to update existing budget: %w", err)
		}
	}
	return nil
}

// CostAlarmInputs returns the usage alarms that act as an early warning
// before the budget thresholds trip: sustained invocation volume on the
// generation function and request volume on the API.
func CostAlarmInputs(project string) []*cloudwatch.PutMetricAlarmInput {
	return []*cloudwatch.PutMetricAlarmInput{
		{
			AlarmName:          aws.String("TransformerModel-HighInvocationCount"),
			AlarmDescription:   aws.String("Lambda invocation volume is unusually high"),
			MetricName:         aws.String("Invocations"),
			Namespace:          aws.String("AWS/Lambda"),
			Statistic:          cwtypes.StatisticSum,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("FunctionName"), Value: aws.String(generateFn(project))},
			},
			Period:             aws.Int32(300),
			EvaluationPeriods:  aws.Int32(1),
			Threshold:          aws.Float64(100),
			ComparisonOperator: cwtypes.ComparisonOperatorGreaterThanThreshold,
			TreatMissingData:   aws.String("notBreaching"),
		},
		{
			AlarmName:          aws.String("TransformerModel-HighAPIRequestCount"),
			AlarmDescription:   aws.String("API Gateway request volume is unusually high"),
			MetricName:         aws.String("Count"),
			Namespace:          aws.String("AWS/ApiGateway"),
			Statistic:          cwtypes.StatisticSum,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("ApiName"), Value: aws.String(project + "-api")},
			},
			Period:             aws.Int32(300),
			EvaluationPeriods:  aws.Int32(1),
			Threshold:          aws.Float64(150),
			ComparisonOperator: cwtypes.ComparisonOperatorGreaterThanThreshold,
			TreatMissingData:   aws.String("notBreaching"),
		},
	}
}

// CreateCostAlarms pushes the usage alarms to CloudWatch.
func CreateCostAlarms(ctx context.Context, client AlarmPutter, project string) error {
	for _, input := range CostAlarmInputs(project) {
		if _, err := client.PutMetricAlarm(ctx, input); err != nil {
			return fmt.Errorf("provision: failed to create alarm %s: %w", aws.ToString(input.AlarmName), err)
		}
	}
	return nil
}
