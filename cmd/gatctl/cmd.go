package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/zafarze/gat-sub000/internal/models"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type userCreator interface {
	Create(ctx context.Context, user *models.User) error
}

type spreadsheetImporter interface {
	Upload(ctx context.Context, scope models.AccessScope, testID, filename string, size int64, r io.Reader) (*models.IngestSummary, error)
	ImportStudents(ctx context.Context, scope models.AccessScope, schoolID, filename string, size int64, r io.Reader) (*models.RosterSummary, error)
}

type warningSource interface {
	ValidateQuestionCounts(ctx context.Context, scope models.AccessScope, testID string) ([]models.QuestionCountWarning, error)
}

type commandLine struct {
	out      io.Writer
	users    userCreator
	ingest   spreadsheetImporter
	warnings warningSource
	migrate  func(ctx context.Context, command string, args ...string) error
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                       - run goose (up, down, status, version, redo)")
	fmt.Fprintln(cli.out, "  adduser -email E -name N -role R [-school ID] [-student ID] - create a user, password is prompted")
	fmt.Fprintln(cli.out, "  import -test ID -file PATH                   - ingest a results spreadsheet")
	fmt.Fprintln(cli.out, "  students -school ID -file PATH               - import a student roster")
	fmt.Fprintln(cli.out, "  warnings -test ID                            - compare uploaded questions with configured counts")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "Login email.")
	addUserName := addUserCmd.String("name", "", "Full name.")
	addUserRole := addUserCmd.String("role", string(models.RoleTeacher), "ADMIN, DIRECTOR, TEACHER, EXPERT or STUDENT.")
	addUserSchool := addUserCmd.String("school", "", "School id, required for every role but ADMIN.")
	addUserStudent := addUserCmd.String("student", "", "Student id, required for STUDENT.")

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importTest := importCmd.String("test", "", "GAT test id.")
	importFile := importCmd.String("file", "", "Path to an .xlsx, .xlsm or .csv file.")

	studentsCmd := flag.NewFlagSet("students", flag.ContinueOnError)
	studentsSchool := studentsCmd.String("school", "", "School id.")
	studentsFile := studentsCmd.String("file", "", "Path to an .xlsx, .xlsm or .csv roster.")

	warningsCmd := flag.NewFlagSet("warnings", flag.ContinueOnError)
	warningsTest := warningsCmd.String("test", "", "GAT test id.")

	for _, fs := range []*flag.FlagSet{addUserCmd, importCmd, studentsCmd, warningsCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2], args[3:]...)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *addUserEmail, *addUserName, *addUserRole, *addUserSchool, *addUserStudent, string(pwd))
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importTest == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importResults(ctx, *importTest, *importFile)
	case "students":
		if err := studentsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *studentsSchool == "" || *studentsFile == "" {
			studentsCmd.Usage()
			return errHelp
		}
		return cli.importStudents(ctx, *studentsSchool, *studentsFile)
	case "warnings":
		if err := warningsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *warningsTest == "" {
			warningsCmd.Usage()
			return errHelp
		}
		return cli.printWarnings(ctx, *warningsTest)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) addUser(ctx context.Context, email, name, role, schoolID, studentID, pwd string) error {
	userRole := models.UserRole(strings.ToUpper(strings.TrimSpace(role)))
	switch userRole {
	case models.RoleAdmin, models.RoleDirector, models.RoleTeacher, models.RoleExpert, models.RoleStudent:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	if userRole != models.RoleAdmin && schoolID == "" {
		return fmt.Errorf("role %s needs -school", userRole)
	}
	if userRole == models.RoleStudent && studentID == "" {
		return errors.New("role STUDENT needs -student")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(name),
		Role:         userRole,
		Active:       true,
	}
	if schoolID != "" {
		user.SchoolID = &schoolID
	}
	if studentID != "" {
		user.StudentID = &studentID
	}
	if err := cli.users.Create(ctx, user); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}

func (cli *commandLine) importResults(ctx context.Context, testID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	summary, err := cli.ingest.Upload(ctx, models.FullAccess(), testID, filepath.Base(path), info.Size(), f)
	if err != nil {
		return err
	}

	table := tablewriter.NewTable(cli.out, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignLeft, tw.AlignRight}},
		},
	}))
	table.Header("Outcome", "Count")
	_ = table.Append("Sheets", strconv.Itoa(summary.Sheets))
	_ = table.Append("Processed", strconv.Itoa(summary.ProcessedCount))
	_ = table.Append("Skipped", strconv.Itoa(summary.SkippedCount))
	_ = table.Append("Errors", strconv.Itoa(len(summary.Errors)))
	_ = table.Append("New classes", strconv.Itoa(len(summary.CreatedClasses)))
	if err := table.Render(); err != nil {
		return err
	}

	if summary.TestDateMismatch {
		fmt.Fprintf(cli.out, "warning: file is dated %s\n", summary.DetectedTestDate.Format("2006-01-02"))
	}
	cli.printLines(summary.SkippedList, summary.Errors)
	return nil
}

func (cli *commandLine) importStudents(ctx context.Context, schoolID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	summary, err := cli.ingest.ImportStudents(ctx, models.FullAccess(), schoolID, filepath.Base(path), info.Size(), f)
	if err != nil {
		return err
	}

	table := tablewriter.NewTable(cli.out)
	table.Header("Created", "Updated", "Skipped", "Errors")
	_ = table.Append(strconv.Itoa(summary.Created), strconv.Itoa(summary.Updated), strconv.Itoa(summary.Skipped), strconv.Itoa(len(summary.Errors)))
	if err := table.Render(); err != nil {
		return err
	}
	cli.printLines(summary.SkippedList, summary.Errors)
	return nil
}

func (cli *commandLine) printLines(skipped, errs []string) {
	for _, line := range skipped {
		fmt.Fprintf(cli.out, "skipped: %s\n", line)
	}
	for _, msg := range errs {
		fmt.Fprintf(cli.out, "error: %s\n", msg)
	}
}

func (cli *commandLine) printWarnings(ctx context.Context, testID string) error {
	warnings, err := cli.warnings.ValidateQuestionCounts(ctx, models.FullAccess(), testID)
	if err != nil {
		return err
	}
	if len(warnings) == 0 {
		fmt.Fprintln(cli.out, "question counts match")
		return nil
	}

	table := tablewriter.NewTable(cli.out)
	table.Header("Subject", "Expected", "Uploaded")
	for _, w := range warnings {
		_ = table.Append(w.SubjectName, strconv.Itoa(w.Expected), strconv.Itoa(w.Actual))
	}
	return table.Render()
}
